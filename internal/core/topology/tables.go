package topology

import (
	"fmt"

	"github.com/dep2p/go-fabric/pkg/types"
)

// Entry 拓扑表条目：高 4 位端口号，低 4 位连接分类
//
// 零值表示未知。
type Entry uint8

// noPort 占位条目使用的端口号
const noPort = 0xF

// EntryUnknown 未知
const EntryUnknown Entry = 0

// Unconnected 未连接占位
var Unconnected = MakeEntry(noPort, types.ConnUnconnected)

// MakeEntry 构造条目
func MakeEntry(port int, conn types.Conn) Entry {
	return Entry(uint8(port&0xF)<<4 | uint8(conn)&0xF)
}

// Port 端口号
func (e Entry) Port() int { return int(e >> 4) }

// Conn 连接分类
func (e Entry) Conn() types.Conn { return types.Conn(e & 0xF) }

// Known 是否已知
func (e Entry) Known() bool { return e.Conn() != types.ConnUnknown }

func (e Entry) String() string {
	if !e.Conn().Connected() {
		return e.Conn().String()
	}
	return fmt.Sprintf("%s@%d", e.Conn(), e.Port())
}

// TableID 表编号（与发现帧中的 table 字段一致）
type TableID uint8

const (
	// TableShelf 层板路由表
	TableShelf TableID = iota
	// TableRack 机架路由表
	TableRack
)

func (t TableID) String() string {
	if t == TableShelf {
		return "shelf"
	}
	return "rack"
}

// Tables 层板与机架路由表
//
// 发现期间只写一次，重新发现时整体重置。
type Tables struct {
	Geometry Geometry
	Shelf    []Entry
	Rack     []Entry
}

// NewTables 创建空表
func NewTables(g Geometry) *Tables {
	return &Tables{
		Geometry: g,
		Shelf:    make([]Entry, g.ShelfEntries()),
		Rack:     make([]Entry, g.RackRouters()),
	}
}

func (t *Tables) table(id TableID) []Entry {
	if id == TableShelf {
		return t.Shelf
	}
	return t.Rack
}

// Len 表长度
func (t *Tables) Len(id TableID) int {
	return len(t.table(id))
}

// Get 读取条目
func (t *Tables) Get(id TableID, index int) Entry {
	tab := t.table(id)
	if index < 0 || index >= len(tab) {
		return EntryUnknown
	}
	return tab[index]
}

// Set 写入未知条目，返回是否新写入
func (t *Tables) Set(id TableID, index int, e Entry) (bool, error) {
	tab := t.table(id)
	if id > TableRack || index < 0 || index >= len(tab) {
		return false, fmt.Errorf("%w: %s[%d]", ErrBadEntry, id, index)
	}
	if !e.Known() || tab[index].Known() {
		return false, nil
	}
	tab[index] = e
	return true, nil
}

// Complete 指定表是否已填满
func (t *Tables) Complete(id TableID) bool {
	for _, e := range t.table(id) {
		if !e.Known() {
			return false
		}
	}
	return true
}

// Known 指定表已知条目数
func (t *Tables) Known(id TableID) int {
	n := 0
	for _, e := range t.table(id) {
		if e.Known() {
			n++
		}
	}
	return n
}

// Reset 清空两张表
func (t *Tables) Reset() {
	clear(t.Shelf)
	clear(t.Rack)
}

// Clone 深拷贝
func (t *Tables) Clone() *Tables {
	return &Tables{
		Geometry: t.Geometry,
		Shelf:    append([]Entry(nil), t.Shelf...),
		Rack:     append([]Entry(nil), t.Rack...),
	}
}

// HasShelfConn 层板表中是否有该连接分类
func (t *Tables) HasShelfConn(c types.Conn) bool {
	for _, e := range t.Shelf {
		if e.Conn() == c {
			return true
		}
	}
	return false
}
