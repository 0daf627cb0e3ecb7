// Package store persists player state in a small YAML file.
package store

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/osa030/soundqueue/internal/app/playback"
	"gopkg.in/yaml.v3"
)

// state is the on-disk document.
type state struct {
	Volume *int `yaml:"volume,omitempty"`
}

// File is a YAML-backed playback.VolumeStore.
type File struct {
	mu   sync.Mutex
	path string
}

var _ playback.VolumeStore = (*File)(nil)

// NewFile creates a store at path. The file is created on first save.
func NewFile(path string) *File {
	return &File{path: path}
}

// LoadVolume returns the stored volume. ok is false when nothing was saved.
func (f *File) LoadVolume() (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, err := f.read()
	if err != nil {
		return 0, false, err
	}
	if st.Volume == nil {
		return 0, false, nil
	}
	return *st.Volume, true, nil
}

// SaveVolume stores the volume.
func (f *File) SaveVolume(volume int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, err := f.read()
	if err != nil {
		return err
	}
	st.Volume = &volume
	return f.write(st)
}

func (f *File) read() (state, error) {
	var st state
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, errors.Wrap(err, "failed to read state file")
	}
	if err := yaml.Unmarshal(data, &st); err != nil {
		return st, errors.Wrap(err, "failed to parse state file")
	}
	return st, nil
}

// write replaces the file atomically through a temp file in the same directory.
func (f *File) write(st state) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return errors.Wrap(err, "failed to encode state")
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create state directory")
	}
	tmp, err := os.CreateTemp(dir, ".soundqueue-state-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to write state")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close state")
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return errors.Wrap(err, "failed to replace state file")
	}
	return nil
}
