package wire

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-fabric/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              帧类型
// ════════════════════════════════════════════════════════════════════════════

// Kind 帧类型
type Kind uint8

const (
	KindInvalid Kind = iota
	// KindRequest 请求命令
	KindRequest
	// KindResponse 应答命令
	KindResponse
	// KindCredit 接收端请求队列读指针
	KindCredit
	// KindHello 拓扑发现纪元声明
	KindHello
	// KindEntries 拓扑表条目批次
	KindEntries
	// KindAck 条目批次确认
	KindAck
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	case KindCredit:
		return "credit"
	case KindHello:
		return "hello"
	case KindEntries:
		return "entries"
	case KindAck:
		return "ack"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// 编解码错误
var (
	ErrTruncated     = errors.New("wire: truncated frame")
	ErrBlockTooLarge = errors.New("wire: data block too large")
	ErrUnknownKind   = errors.New("wire: unknown frame kind")
)

// 信封字段号
const (
	fieldKind protowire.Number = 1
	fieldBody protowire.Number = 2
)

// 控制消息字段号
const (
	fieldCredit protowire.Number = 1
	fieldEpoch  protowire.Number = 1
	fieldSeq    protowire.Number = 2
	fieldEntry  protowire.Number = 3
	fieldTable  protowire.Number = 1
	fieldIndex  protowire.Number = 2
	fieldValue  protowire.Number = 3
)

// ════════════════════════════════════════════════════════════════════════════
//                              消息
// ════════════════════════════════════════════════════════════════════════════

// Entry 拓扑表条目
type Entry struct {
	Table uint8
	Index uint16
	Value uint8
}

// Message 链路上的一帧
//
// 按 Kind 使用对应字段：命令帧用 Command，信用帧用 Credit，
// 发现帧用 Epoch/Seq/Entries。
type Message struct {
	Kind    Kind
	Command types.Command
	Credit  uint16
	Epoch   string
	Seq     uint32
	Entries []Entry
}

// CommandMessage 根据命令方向构造命令帧
func CommandMessage(c *types.Command) *Message {
	kind := KindRequest
	if c.IsResponse() {
		kind = KindResponse
	}
	return &Message{Kind: kind, Command: *c}
}

// Marshal 编码一帧
func Marshal(m *Message) ([]byte, error) {
	var body []byte
	switch m.Kind {
	case KindRequest, KindResponse:
		body = AppendCommand(make([]byte, 0, types.CommandSize+len(m.Command.Block)), &m.Command)
	case KindCredit:
		body = protowire.AppendTag(body, fieldCredit, protowire.VarintType)
		body = protowire.AppendVarint(body, uint64(m.Credit))
	case KindHello:
		body = appendEpoch(body, m.Epoch)
	case KindAck:
		body = appendEpoch(body, m.Epoch)
		body = protowire.AppendTag(body, fieldSeq, protowire.VarintType)
		body = protowire.AppendVarint(body, uint64(m.Seq))
	case KindEntries:
		body = appendEpoch(body, m.Epoch)
		body = protowire.AppendTag(body, fieldSeq, protowire.VarintType)
		body = protowire.AppendVarint(body, uint64(m.Seq))
		for _, e := range m.Entries {
			body = protowire.AppendTag(body, fieldEntry, protowire.BytesType)
			body = protowire.AppendBytes(body, appendEntry(nil, e))
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, m.Kind)
	}

	out := make([]byte, 0, len(body)+8)
	out = protowire.AppendTag(out, fieldKind, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(m.Kind))
	out = protowire.AppendTag(out, fieldBody, protowire.BytesType)
	out = protowire.AppendBytes(out, body)
	return out, nil
}

// Unmarshal 解码一帧
func Unmarshal(b []byte) (*Message, error) {
	m := &Message{}
	var body []byte
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte, u uint64) error {
		switch {
		case num == fieldKind && typ == protowire.VarintType:
			m.Kind = Kind(u)
		case num == fieldBody && typ == protowire.BytesType:
			body = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch m.Kind {
	case KindRequest, KindResponse:
		m.Command, err = ParseCommand(body)
	case KindCredit, KindHello, KindAck, KindEntries:
		err = m.parseControl(body)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownKind, m.Kind)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Message) parseControl(body []byte) error {
	return walkFields(body, func(num protowire.Number, typ protowire.Type, v []byte, u uint64) error {
		switch m.Kind {
		case KindCredit:
			if num == fieldCredit && typ == protowire.VarintType {
				m.Credit = uint16(u)
			}
			return nil
		}
		switch {
		case num == fieldEpoch && typ == protowire.BytesType:
			m.Epoch = string(v)
		case num == fieldSeq && typ == protowire.VarintType:
			m.Seq = uint32(u)
		case num == fieldEntry && typ == protowire.BytesType:
			e, err := parseEntry(v)
			if err != nil {
				return err
			}
			m.Entries = append(m.Entries, e)
		}
		return nil
	})
}

func appendEpoch(b []byte, epoch string) []byte {
	b = protowire.AppendTag(b, fieldEpoch, protowire.BytesType)
	return protowire.AppendString(b, epoch)
}

func appendEntry(b []byte, e Entry) []byte {
	b = protowire.AppendTag(b, fieldTable, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Table))
	b = protowire.AppendTag(b, fieldIndex, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Index))
	b = protowire.AppendTag(b, fieldValue, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(e.Value))
}

func parseEntry(b []byte) (Entry, error) {
	var e Entry
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, _ []byte, u uint64) error {
		if typ != protowire.VarintType {
			return nil
		}
		switch num {
		case fieldTable:
			e.Table = uint8(u)
		case fieldIndex:
			e.Index = uint16(u)
		case fieldValue:
			e.Value = uint8(u)
		}
		return nil
	})
	return e, err
}

// walkFields 遍历 protobuf 字段，只解释 varint 与 bytes，其余跳过
func walkFields(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, u uint64) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrTruncated, protowire.ParseError(n))
		}
		b = b[n:]

		var (
			v []byte
			u uint64
		)
		switch typ {
		case protowire.VarintType:
			u, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			v, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrTruncated, protowire.ParseError(n))
		}
		b = b[n:]

		if err := fn(num, typ, v, u); err != nil {
			return err
		}
	}
	return nil
}
