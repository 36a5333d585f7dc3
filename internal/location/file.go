package location

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FileStore is a string key/value file, the on-disk counterpart of browser local storage.
// The location is kept as a JSON string under StorageKey; other keys are preserved.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a FileStore backed by path. The file is created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultFilePath returns the storage file under the user's config directory.
func DefaultFilePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", eris.Wrap(err, "location: resolve config dir")
	}
	return filepath.Join(dir, "civictrack", "storage.json"), nil
}

// Path returns the backing file path.
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Save(_ context.Context, loc UserLocation) error {
	data, err := Encode(loc)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	items, err := f.read()
	if err != nil {
		zap.L().Warn("location: replacing unreadable storage file", zap.String("path", f.path), zap.Error(err))
		items = map[string]string{}
	}
	items[StorageKey] = string(data)
	return f.write(items)
}

func (f *FileStore) Load(_ context.Context) (UserLocation, bool) {
	f.mu.Lock()
	items, err := f.read()
	f.mu.Unlock()
	if err != nil {
		zap.L().Debug("location: storage file unreadable", zap.String("path", f.path), zap.Error(err))
		return UserLocation{}, false
	}
	raw, ok := items[StorageKey]
	if !ok {
		return UserLocation{}, false
	}
	loc, ok := Decode([]byte(raw))
	if !ok {
		zap.L().Debug("location: ignoring malformed stored value", zap.String("path", f.path))
	}
	return loc, ok
}

func (f *FileStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	items, err := f.read()
	if err != nil {
		// Nothing decodable to clear; drop the file.
		if rmErr := os.Remove(f.path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			return eris.Wrap(rmErr, "location: remove storage file")
		}
		return nil
	}
	if _, ok := items[StorageKey]; !ok {
		return nil
	}
	delete(items, StorageKey)
	return f.write(items)
}

// read returns the stored items. A missing file is an empty map.
func (f *FileStore) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "location: read storage file")
	}
	items := map[string]string{}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, eris.Wrap(err, "location: parse storage file")
	}
	return items, nil
}

// write replaces the file atomically via a temp file in the same directory.
func (f *FileStore) write(items map[string]string) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return eris.Wrap(err, "location: encode storage file")
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrap(err, "location: create storage dir")
	}
	tmp, err := os.CreateTemp(dir, ".storage-*.json")
	if err != nil {
		return eris.Wrap(err, "location: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "location: write temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "location: close temp file")
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return eris.Wrap(err, "location: replace storage file")
	}
	return nil
}
