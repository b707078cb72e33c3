package storage

import "errors"

type Key string

const (
	EnabledFeatureFlags        Key = "enabledFeatureFlags"
	EnabledFeatureFlagPayloads Key = "enabledFeatureFlagPayloads"
	SessionReplay              Key = "sessionReplay"
)

// Keys lists every key a storage may hold. Reset clears exactly these.
var Keys = []Key{EnabledFeatureFlags, EnabledFeatureFlagPayloads, SessionReplay}

var ErrUnknownKey = errors.New("unknown storage key")

// IStorage persists dictionaries under a fixed set of keys. Single-key access
// is safe for concurrent use; there is no atomicity across keys.
type IStorage interface {
	SetDictionary(key Key, value map[string]interface{}) error
	GetDictionary(key Key) (map[string]interface{}, bool)
	Remove(key Key) error
	Reset() error
}

func validKey(key Key) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}
