package topology

import "github.com/dep2p/go-fabric/pkg/types"

// Classify 按对端身份给链路分类
//
// 比较顺序：机架 X、机架 Y（层板）、芯片 X、芯片 Y。
func Classify(local, remote types.Identity) types.Conn {
	switch {
	case remote.Rack.X > local.Rack.X:
		return types.ConnRackRight
	case remote.Rack.X < local.Rack.X:
		return types.ConnRackLeft
	case remote.Rack.Y > local.Rack.Y:
		return types.ConnRackUp
	case remote.Rack.Y < local.Rack.Y:
		return types.ConnRackDown
	case remote.ChipX > local.ChipX:
		return types.ConnRight
	case remote.ChipX < local.ChipX:
		return types.ConnLeft
	case remote.ChipY > local.ChipY:
		return types.ConnUp
	default:
		return types.ConnDown
	}
}

// LinkView 端口链路状态的只读视图
type LinkView interface {
	NumPorts() int
	Remote(port int) (types.Identity, bool)
}

// ClassifyPorts 为每个端口分类，没有可用链路的端口为未连接
func ClassifyPorts(local types.Identity, links LinkView) []types.Conn {
	conns := make([]types.Conn, links.NumPorts())
	for p := range conns {
		remote, ok := links.Remote(p)
		if !ok {
			conns[p] = types.ConnUnconnected
			continue
		}
		conns[p] = Classify(local, remote)
	}
	return conns
}

// MinPort 指定分类的最小端口号，没有返回 -1
func MinPort(conns []types.Conn, c types.Conn) int {
	for p, pc := range conns {
		if pc == c {
			return p
		}
	}
	return -1
}
