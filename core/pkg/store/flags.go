package store

import (
	"fmt"
	"reflect"

	"github.com/hashicorp/go-memdb"
	log "github.com/sirupsen/logrus"

	"github.com/worldcoin/posthog-ios/core/pkg/model"
)

const (
	flagsTable         = "flags"
	sessionReplayTable = "session_replay"
	sessionReplayID    = "current"
)

type IStore interface {
	Get(key string) (model.FlagRecord, bool)
	GetAll() map[string]model.FlagRecord
}

// State holds the current flag snapshot. Every mutation is a single memdb
// write transaction, so readers see either the previous or the next snapshot.
type State struct {
	db     *memdb.MemDB
	logger *log.Entry
}

type Notifications = map[string]interface{}

type sessionReplayRecord struct {
	ID     string
	Config model.SessionReplayConfig
}

type writeOptions struct {
	setReplay bool
	replay    *model.SessionReplayConfig
}

type WriteOption func(*writeOptions)

// WithSessionReplay stores cfg in the same transaction as the flags. A nil
// cfg removes the stored config.
func WithSessionReplay(cfg *model.SessionReplayConfig) WriteOption {
	return func(o *writeOptions) {
		o.setReplay = true
		o.replay = cfg
	}
}

func NewFlags(logger *log.Entry) *State {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}

	schema := &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			flagsTable: {
				Name: flagsTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Key", Lowercase: false},
					},
				},
			},
			sessionReplayTable: {
				Name: sessionReplayTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
				},
			},
		},
	}

	db, err := memdb.NewMemDB(schema)
	if err != nil {
		// the schema is static, so this only fails on a programming error
		panic(err)
	}

	return &State{
		db:     db,
		logger: logger.WithField("component", "store"),
	}
}

func (f *State) Get(key string) (model.FlagRecord, bool) {
	txn := f.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(flagsTable, "id", key)
	if err != nil {
		f.logger.Errorf("unable to read flag %s: %v", key, err)
		return model.FlagRecord{}, false
	}

	flag, ok := raw.(model.FlagRecord)
	return flag, ok
}

// GetAll returns a copy of the current snapshot.
func (f *State) GetAll() map[string]model.FlagRecord {
	txn := f.db.Txn(false)
	defer txn.Abort()

	flags, err := all(txn)
	if err != nil {
		f.logger.Errorf("unable to read flags: %v", err)
		return map[string]model.FlagRecord{}
	}
	return flags
}

// SessionReplay returns the stored session recording config and, when it is
// gated by a flag, the linked flag record as seen by the same snapshot. A
// missing linked flag is returned as a zero FlagRecord.
func (f *State) SessionReplay() (model.SessionReplayConfig, model.FlagRecord, bool) {
	txn := f.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(sessionReplayTable, "id", sessionReplayID)
	if err != nil {
		f.logger.Errorf("unable to read session replay config: %v", err)
		return model.SessionReplayConfig{}, model.FlagRecord{}, false
	}
	record, ok := raw.(sessionReplayRecord)
	if !ok {
		return model.SessionReplayConfig{}, model.FlagRecord{}, false
	}
	if record.Config.LinkedFlag == nil || record.Config.LinkedFlag.FlagKey == "" {
		return record.Config, model.FlagRecord{}, true
	}

	raw, err = txn.First(flagsTable, "id", record.Config.LinkedFlag.FlagKey)
	if err != nil {
		f.logger.Errorf("unable to read flag %s: %v", record.Config.LinkedFlag.FlagKey, err)
		return record.Config, model.FlagRecord{}, true
	}
	linked, _ := raw.(model.FlagRecord)
	return record.Config, linked, true
}

// Update replaces the whole snapshot with flags.
func (f *State) Update(flags map[string]model.FlagRecord, opts ...WriteOption) (Notifications, error) {
	return f.write(flags, true, opts)
}

// Merge writes flags on top of the current snapshot. Keys not present in
// flags keep their stored record, and a record missing its value or payload
// keeps the stored one.
func (f *State) Merge(flags map[string]model.FlagRecord, opts ...WriteOption) (Notifications, error) {
	return f.write(flags, false, opts)
}

// Clear removes every flag.
func (f *State) Clear(opts ...WriteOption) (Notifications, error) {
	return f.write(nil, true, opts)
}

func (f *State) write(flags map[string]model.FlagRecord, replace bool, opts []WriteOption) (Notifications, error) {
	o := writeOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	notifications := Notifications{}
	txn := f.db.Txn(true)
	defer txn.Abort()

	stored, err := all(txn)
	if err != nil {
		return nil, fmt.Errorf("unable to read flags: %w", err)
	}

	if replace {
		for k, v := range stored {
			if _, ok := flags[k]; ok {
				continue
			}
			if err := txn.Delete(flagsTable, v); err != nil {
				return nil, fmt.Errorf("unable to delete flag %s: %w", k, err)
			}
			notifications[k] = map[string]interface{}{
				"type": string(model.NotificationDelete),
			}
			f.logger.Debugf("flag %s has been removed from the snapshot", k)
		}
	}

	for k, newFlag := range flags {
		newFlag.Key = k
		storedFlag, ok := stored[k]
		if ok && !replace {
			if newFlag.Value.IsAbsent() {
				newFlag.Value = storedFlag.Value
			}
			if newFlag.Payload.IsAbsent() {
				newFlag.Payload = storedFlag.Payload
			}
		}
		if ok && reflect.DeepEqual(storedFlag, newFlag) {
			continue
		}
		if err := txn.Insert(flagsTable, newFlag); err != nil {
			return nil, fmt.Errorf("unable to store flag %s: %w", k, err)
		}

		notificationType := model.NotificationCreate
		if ok {
			notificationType = model.NotificationUpdate
		}
		notifications[k] = map[string]interface{}{
			"type": string(notificationType),
		}
		f.logger.Debugf("flag %s %s", k, notificationType)
	}

	if o.setReplay {
		if err := writeSessionReplay(txn, o.replay); err != nil {
			return nil, err
		}
	}

	txn.Commit()
	return notifications, nil
}

func writeSessionReplay(txn *memdb.Txn, cfg *model.SessionReplayConfig) error {
	if cfg == nil {
		if _, err := txn.DeleteAll(sessionReplayTable, "id", sessionReplayID); err != nil {
			return fmt.Errorf("unable to remove session replay config: %w", err)
		}
		return nil
	}
	if err := txn.Insert(sessionReplayTable, sessionReplayRecord{ID: sessionReplayID, Config: *cfg}); err != nil {
		return fmt.Errorf("unable to store session replay config: %w", err)
	}
	return nil
}

func all(txn *memdb.Txn) (map[string]model.FlagRecord, error) {
	it, err := txn.Get(flagsTable, "id_prefix", "")
	if err != nil {
		return nil, err
	}

	flags := make(map[string]model.FlagRecord)
	for obj := it.Next(); obj != nil; obj = it.Next() {
		flag := obj.(model.FlagRecord)
		flags[flag.Key] = flag
	}
	return flags, nil
}
