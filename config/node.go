package config

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/dep2p/go-fabric/pkg/types"
)

// NodeConfig 芯片身份与层板几何
type NodeConfig struct {
	// BoardID 板卡编号，0 为无效
	BoardID uint32 `json:"board_id"`

	// BoardType 板卡型号: generic, nebula-x1, nebula-x2-left, nebula-x2-right
	BoardType string `json:"board_type"`

	// RackX 机架编号
	RackX uint8 `json:"rack_x"`
	// RackY 机架内层板编号
	RackY uint8 `json:"rack_y"`

	ChipX uint8 `json:"chip_x"`
	ChipY uint8 `json:"chip_y"`

	// NocX/NocY 本节点路由器所在的本地端点
	NocX uint8 `json:"noc_x"`
	NocY uint8 `json:"noc_y"`

	// ShelfWidth 层板芯片列数
	ShelfWidth int `json:"shelf_width"`
	// ShelfHeight 层板芯片行数
	ShelfHeight int `json:"shelf_height"`

	// NocCols/NocRows 每个芯片的本地端点网格
	NocCols int `json:"noc_cols"`
	NocRows int `json:"noc_rows"`

	// NumPorts 物理端口数
	NumPorts int `json:"num_ports"`
}

// DefaultNodeConfig 默认 4x8 层板、16 端口
func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		BoardID:     1,
		BoardType:   types.BoardGeneric.String(),
		NocX:        9,
		NocY:        0,
		ShelfWidth:  4,
		ShelfHeight: 8,
		NocCols:     10,
		NocRows:     12,
		NumPorts:    16,
	}
}

// Validate 验证节点配置
func (c *NodeConfig) Validate() error {
	var err error
	if c.BoardID == 0 {
		err = multierr.Append(err, errors.New("node: board_id must be non-zero"))
	}
	if _, e := types.ParseBoardType(c.BoardType); e != nil {
		err = multierr.Append(err, fmt.Errorf("node: %w", e))
	}
	if c.ShelfWidth < 2 || c.ShelfHeight < 2 || c.ShelfWidth*c.ShelfHeight > 64 {
		err = multierr.Append(err, fmt.Errorf("node: shelf %dx%d out of range", c.ShelfWidth, c.ShelfHeight))
	}
	if int(c.ChipX) >= c.ShelfWidth || int(c.ChipY) >= c.ShelfHeight {
		err = multierr.Append(err, fmt.Errorf("node: chip (%d,%d) outside shelf", c.ChipX, c.ChipY))
	}
	if int(c.RackX) >= types.MaxRacks || int(c.RackY) >= types.MaxShelves {
		err = multierr.Append(err, fmt.Errorf("node: rack (%d,%d) out of range", c.RackX, c.RackY))
	}
	if c.NocCols < 1 || c.NocCols > 16 || c.NocRows < 1 || c.NocRows > 16 {
		err = multierr.Append(err, fmt.Errorf("node: noc grid %dx%d out of range", c.NocCols, c.NocRows))
	}
	if int(c.NocX) >= c.NocCols || int(c.NocY) >= c.NocRows {
		err = multierr.Append(err, fmt.Errorf("node: noc (%d,%d) outside grid", c.NocX, c.NocY))
	}
	if c.NumPorts < 1 || c.NumPorts > 32 {
		err = multierr.Append(err, fmt.Errorf("node: num_ports %d out of range", c.NumPorts))
	}
	return err
}

// Identity 返回芯片身份
func (c *NodeConfig) Identity() types.Identity {
	bt, _ := types.ParseBoardType(c.BoardType)
	return types.Identity{
		BoardID:   c.BoardID,
		BoardType: bt,
		Rack:      types.Rack{X: c.RackX, Y: c.RackY},
		ChipX:     c.ChipX,
		ChipY:     c.ChipY,
		NocX:      c.NocX,
		NocY:      c.NocY,
	}
}
