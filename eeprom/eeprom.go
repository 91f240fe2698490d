// Package eeprom provides the flat, byte-addressable non-volatile region the
// settings store is mapped onto.
package eeprom

import (
	"errors"

	"github.com/samber/oops"
)

var ErrOutOfRange = errors.New("eeprom access out of range")

// Backend is a fixed-size byte region. Writes are buffered until Commit makes
// them durable.
type Backend interface {
	Size() int
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Commit() error
}

// Erase zeroes every addressable byte of b and commits.
func Erase(b Backend) error {
	zero := make([]byte, b.Size())
	if _, err := b.WriteAt(zero, 0); err != nil {
		return oops.Wrapf(err, "erase")
	}
	if err := b.Commit(); err != nil {
		return oops.Wrapf(err, "erase commit")
	}
	return nil
}

// checkRange reports ErrOutOfRange unless [off, off+n) lies inside size.
func checkRange(size int, off int64, n int) error {
	if off < 0 || off+int64(n) > int64(size) {
		return oops.Wrapf(ErrOutOfRange, "offset %d length %d size %d", off, n, size)
	}
	return nil
}
