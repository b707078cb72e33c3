package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

const fileExt = ".json"

type cacheEntry struct {
	data    []byte
	present bool
}

// FileStorage keeps one JSON file per key in Dir. Reads are served from a
// cache that Watch invalidates when another process touches the files.
type FileStorage struct {
	Dir string

	mx         sync.Mutex
	cache      map[Key]cacheEntry
	generation uint64
	logger     *log.Entry
}

func NewFileStorage(dir string, logger *log.Entry) (*FileStorage, error) {
	if dir == "" {
		return nil, errors.New("no storage directory set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create storage directory: %w", err)
	}
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &FileStorage{
		Dir:    dir,
		cache:  map[Key]cacheEntry{},
		logger: logger.WithField("component", "file-storage"),
	}, nil
}

func (fs *FileStorage) path(key Key) string {
	return filepath.Join(fs.Dir, string(key)+fileExt)
}

func (fs *FileStorage) SetDictionary(key Key, value map[string]interface{}) error {
	if !validKey(key) {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("unable to marshal %s: %w", key, err)
	}

	fs.mx.Lock()
	defer fs.mx.Unlock()

	tmp, err := os.CreateTemp(fs.Dir, "."+string(key)+"-*")
	if err != nil {
		return fmt.Errorf("unable to write %s: %w", key, err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("unable to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("unable to write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), fs.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("unable to write %s: %w", key, err)
	}

	fs.generation++
	fs.cache[key] = cacheEntry{data: b, present: true}
	return nil
}

func (fs *FileStorage) GetDictionary(key Key) (map[string]interface{}, bool) {
	fs.mx.Lock()
	entry, cached := fs.cache[key]
	generation := fs.generation
	fs.mx.Unlock()

	if !cached {
		b, err := os.ReadFile(fs.path(key))
		switch {
		case err == nil:
			entry = cacheEntry{data: b, present: true}
		case errors.Is(err, os.ErrNotExist):
			entry = cacheEntry{}
		default:
			fs.logger.Errorf("unable to read %s: %v", key, err)
			return nil, false
		}

		fs.mx.Lock()
		if fs.generation == generation {
			fs.cache[key] = entry
		}
		fs.mx.Unlock()
	}

	if !entry.present {
		return nil, false
	}
	return decodeDictionary(entry.data)
}

func (fs *FileStorage) Remove(key Key) error {
	fs.mx.Lock()
	defer fs.mx.Unlock()

	if err := os.Remove(fs.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("unable to remove %s: %w", key, err)
	}
	fs.generation++
	fs.cache[key] = cacheEntry{}
	return nil
}

func (fs *FileStorage) Reset() error {
	var errs []string
	for _, key := range Keys {
		if err := fs.Remove(key); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("unable to reset storage: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (fs *FileStorage) invalidate(key Key) {
	fs.mx.Lock()
	defer fs.mx.Unlock()
	fs.generation++
	delete(fs.cache, key)
}

// Watch invalidates cached keys whenever their files change on disk. It returns
// once the watcher is registered and stops when ctx is done.
func (fs *FileStorage) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to create watcher: %w", err)
	}
	if err := watcher.Add(fs.Dir); err != nil {
		watcher.Close()
		return fmt.Errorf("unable to watch %s: %w", fs.Dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				name := filepath.Base(event.Name)
				if !strings.HasSuffix(name, fileExt) {
					continue
				}
				key := Key(strings.TrimSuffix(name, fileExt))
				if !validKey(key) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					fs.invalidate(key)
					fs.logger.Debugf("%s changed on disk (%s)", key, event.Op)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				fs.logger.Errorf("watcher error: %v", err)
			}
		}
	}()

	return nil
}
