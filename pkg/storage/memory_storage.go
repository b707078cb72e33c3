package storage

import (
	"encoding/json"
	"fmt"
	"sync"
)

type MemoryStorage struct {
	mx     sync.RWMutex
	values map[Key][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: map[Key][]byte{}}
}

// SetDictionary stores an encoded copy, so later changes to value are not seen.
func (m *MemoryStorage) SetDictionary(key Key, value map[string]interface{}) error {
	if !validKey(key) {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("unable to marshal %s: %w", key, err)
	}

	m.mx.Lock()
	defer m.mx.Unlock()
	m.values[key] = b
	return nil
}

func (m *MemoryStorage) GetDictionary(key Key) (map[string]interface{}, bool) {
	m.mx.RLock()
	b, ok := m.values[key]
	m.mx.RUnlock()
	if !ok {
		return nil, false
	}
	return decodeDictionary(b)
}

func (m *MemoryStorage) Remove(key Key) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemoryStorage) Reset() error {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.values = map[Key][]byte{}
	return nil
}

func decodeDictionary(b []byte) (map[string]interface{}, bool) {
	var dict map[string]interface{}
	if err := json.Unmarshal(b, &dict); err != nil || dict == nil {
		return nil, false
	}
	return dict, true
}
