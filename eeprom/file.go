package eeprom

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/samber/oops"

	"settings-portal/logger"
)

var log = logger.Get()

// File is a Backend persisted as a raw image on disk. The image lives in
// memory; Commit rewrites the file atomically.
type File struct {
	mu    sync.Mutex
	path  string
	image []byte
	dirty bool
}

// OpenFile loads the image at path, or starts from a zeroed image if the file
// does not exist. An image of the wrong length is padded or cut to size.
func OpenFile(path string, size int) (*File, error) {
	f := &File{path: path, image: make([]byte, size)}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.WithField("path", path).Info("eeprom image not found, starting blank")
			return f, nil
		}
		return nil, oops.Wrapf(err, "read eeprom image %s", path)
	}
	if len(data) != size {
		log.WithField("path", path).Warnf("eeprom image is %d bytes, expected %d", len(data), size)
	}
	copy(f.image, data)
	return f, nil
}

func (f *File) Size() int {
	return len(f.image)
}

// Path returns the location of the image file.
func (f *File) Path() string {
	return f.path
}

func (f *File) ReadAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := checkRange(len(f.image), off, len(p)); err != nil {
		return 0, err
	}
	return copy(p, f.image[off:]), nil
}

func (f *File) WriteAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := checkRange(len(f.image), off, len(p)); err != nil {
		return 0, err
	}
	f.dirty = true
	return copy(f.image[off:], p), nil
}

// Commit writes the image if anything changed since the last commit.
func (f *File) Commit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.dirty {
		return nil
	}
	if err := f.writeAtomic(); err != nil {
		return err
	}
	f.dirty = false
	return nil
}

// writeAtomic writes to a temp file then renames it over path.
// Caller must hold f.mu.
func (f *File) writeAtomic() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return oops.Wrapf(err, "create eeprom directory")
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, f.image, 0600); err != nil {
		return oops.Wrapf(err, "write eeprom image")
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return oops.Wrapf(err, "replace eeprom image")
	}
	return nil
}
