package topology

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dep2p/go-fabric/internal/core/storage"
	"github.com/dep2p/go-fabric/pkg/types"
)

// storeNamespace 快照键空间前缀
const storeNamespace = "topology/"

// Snapshot 一次完成的拓扑发现结果
//
// 只用于诊断与离线比对，启动时不会用它跳过发现。
type Snapshot struct {
	Epoch    string         `json:"epoch"`
	Identity types.Identity `json:"identity"`
	Conns    []types.Conn   `json:"conns"`
	Shelf    []Entry        `json:"shelf"`
	Rack     []Entry        `json:"rack"`
	SavedAt  time.Time      `json:"saved_at"`
}

// Tables 从快照还原路由表
func (s *Snapshot) Tables(g Geometry) (*Tables, error) {
	t := NewTables(g)
	if len(s.Shelf) != len(t.Shelf) || len(s.Rack) != len(t.Rack) {
		return nil, fmt.Errorf("%w: snapshot %d/%d entries, geometry wants %d/%d",
			ErrInvalidGeometry, len(s.Shelf), len(s.Rack), len(t.Shelf), len(t.Rack))
	}
	copy(t.Shelf, s.Shelf)
	copy(t.Rack, s.Rack)
	return t, nil
}

// Store 拓扑快照存储
type Store struct {
	kv *storage.KV
}

// NewStore 在数据库上创建快照存储
func NewStore(db *storage.DB) *Store {
	return &Store{kv: db.Namespace(storeNamespace)}
}

func snapshotKey(rack types.Rack, x, y uint8) string {
	return fmt.Sprintf("%04x/%d.%d", rack.ID(), x, y)
}

// Save 保存快照，同一芯片只保留最新一份
func (s *Store) Save(snap *Snapshot) error {
	id := snap.Identity
	if err := s.kv.PutJSON(snapshotKey(id.Rack, id.ChipX, id.ChipY), snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load 读取芯片的快照
func (s *Store) Load(rack types.Rack, x, y uint8) (*Snapshot, error) {
	var snap Snapshot
	err := s.kv.GetJSON(snapshotKey(rack, x, y), &snap)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, ErrSnapshotNotFound
	case err != nil:
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return &snap, nil
}

// List 返回全部快照，按键序
func (s *Store) List() ([]*Snapshot, error) {
	var out []*Snapshot
	err := s.kv.Iterate(func(key string, value []byte) error {
		var snap Snapshot
		if err := json.Unmarshal(value, &snap); err != nil {
			return fmt.Errorf("decode snapshot %s: %w", key, err)
		}
		out = append(out, &snap)
		return nil
	})
	return out, err
}
