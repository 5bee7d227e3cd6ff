package storage

import (
	"encoding/json"
	"strings"
)

// KV 带前缀隔离的键空间
type KV struct {
	db     *DB
	prefix string
}

// Namespace 返回前缀为 prefix 的键空间
func (d *DB) Namespace(prefix string) *KV {
	return &KV{db: d, prefix: prefix}
}

func (s *KV) key(k string) []byte {
	return []byte(s.prefix + k)
}

// Put 写入原始值
func (s *KV) Put(key string, value []byte) error {
	return s.db.Put(s.key(key), value)
}

// Get 读取原始值
func (s *KV) Get(key string) ([]byte, error) {
	return s.db.Get(s.key(key))
}

// Delete 删除
func (s *KV) Delete(key string) error {
	return s.db.Delete(s.key(key))
}

// PutJSON 以 JSON 写入
func (s *KV) PutJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Put(key, data)
}

// GetJSON 读取 JSON 到 v
func (s *KV) GetJSON(key string, v any) error {
	data, err := s.Get(key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Iterate 遍历键空间，回调中的键已去掉前缀
func (s *KV) Iterate(fn func(key string, value []byte) error) error {
	return s.db.Iterate([]byte(s.prefix), func(k, v []byte) error {
		return fn(strings.TrimPrefix(string(k), s.prefix), v)
	})
}
