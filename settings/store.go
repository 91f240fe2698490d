package settings

import (
	"bytes"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"

	"settings-portal/eeprom"
	"settings-portal/logger"
)

var log = logger.Get()

// erasedByte is what blank flash reads as.
const erasedByte = 0xFF

// Setting is a single label/value pair.
type Setting struct {
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
}

// Store is the in-memory cache of every catalog setting, mirrored slot by
// slot onto an eeprom.Backend. Every mutation is written and committed before
// it returns.
type Store struct {
	mu       sync.RWMutex
	backend  eeprom.Backend
	catalog  *Catalog
	cache    map[string]string
	onChange []func(Setting)
}

// NewStore wires a store to backend. Load must be called before Get returns
// anything useful.
func NewStore(backend eeprom.Backend, catalog *Catalog) (*Store, error) {
	if backend.Size() < catalog.RegionSize() {
		return nil, oops.Errorf("eeprom region is %d bytes, catalog needs %d", backend.Size(), catalog.RegionSize())
	}
	return &Store{
		backend: backend,
		catalog: catalog,
		cache:   make(map[string]string, catalog.Len()),
	}, nil
}

// Catalog returns the catalog the store was built with.
func (s *Store) Catalog() *Catalog {
	return s.catalog
}

// OnChange registers fn to be called after every successful Set.
func (s *Store) OnChange(fn func(Setting)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Load fills the cache from storage. Empty slots take the catalog default,
// which is written back at once so blank storage converges to defaults.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.catalog.entries {
		value, err := s.readSlot(e)
		if err != nil {
			return err
		}
		if value != "" {
			s.cache[e.Label] = value
			logValue(e.Label, value).Debug("loaded setting")
			continue
		}
		def, _ := clampValue(e.Default)
		s.cache[e.Label] = def
		if err := s.writeSlot(e, def); err != nil {
			return err
		}
		logValue(e.Label, def).Info("default setting applied")
	}
	return nil
}

// Read returns what is stored in label's slot, bypassing the cache. Unknown
// labels read as "".
func (s *Store) Read(label string) (string, error) {
	e, ok := s.catalog.Lookup(label)
	if !ok {
		return "", nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readSlot(e)
}

// Write stores value in label's slot without touching the cache. Unknown
// labels are ignored.
func (s *Store) Write(label, value string) error {
	e, ok := s.catalog.Lookup(label)
	if !ok {
		return nil
	}
	value, _ = clampValue(value)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeSlot(e, value)
}

// Get returns the cached value for label, or "" if label is unknown.
func (s *Store) Get(label string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache[label]
}

// Set updates the cache and the slot for label. Unknown labels are ignored.
// Values longer than MaxValueLen are truncated.
func (s *Store) Set(label, value string) error {
	e, ok := s.catalog.Lookup(label)
	if !ok {
		log.WithField("label", label).Debug("ignoring unknown setting")
		return nil
	}
	value, cut := clampValue(value)
	if cut {
		log.WithField("label", label).Warnf("value truncated to %d bytes", MaxValueLen)
	}

	s.mu.Lock()
	err := s.writeSlot(e, value)
	if err == nil {
		s.cache[label] = value
	}
	hooks := s.onChange
	s.mu.Unlock()
	if err != nil {
		return err
	}

	logValue(label, value).Info("setting saved")
	for _, fn := range hooks {
		fn(Setting{Label: label, Value: value})
	}
	return nil
}

// EraseAll zeroes the whole storage region. The cache is left alone; the
// next Load brings every slot back to its default.
func (s *Store) EraseAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := eeprom.Erase(s.backend); err != nil {
		return err
	}
	log.Warn("settings storage erased")
	return nil
}

// Settings returns a snapshot of the cache in slot order.
func (s *Store) Settings() []Setting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Setting, 0, len(s.catalog.entries))
	for _, e := range s.catalog.entries {
		if v, ok := s.cache[e.Label]; ok {
			out = append(out, Setting{Label: e.Label, Value: v})
		}
	}
	return out
}

// Len returns the number of cached settings.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// readSlot scans the slot up to the first NUL. Caller must hold s.mu.
func (s *Store) readSlot(e Entry) (string, error) {
	buf := make([]byte, SlotSize)
	if _, err := s.backend.ReadAt(buf, e.Offset); err != nil {
		return "", oops.Wrapf(err, "read slot %s", e.Label)
	}
	if buf[0] == erasedByte {
		return "", nil
	}
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	return string(buf), nil
}

// writeSlot writes value plus terminator and commits. value must already be
// clamped. Caller must hold s.mu.
func (s *Store) writeSlot(e Entry, value string) error {
	buf := make([]byte, len(value)+1)
	copy(buf, value)
	if _, err := s.backend.WriteAt(buf, e.Offset); err != nil {
		return oops.Wrapf(err, "write slot %s", e.Label)
	}
	if err := s.backend.Commit(); err != nil {
		return oops.Wrapf(err, "commit slot %s", e.Label)
	}
	return nil
}

// clampValue cuts value at the first NUL and to at most MaxValueLen bytes,
// backing off to a rune boundary. The bool reports a length cut.
func clampValue(value string) (string, bool) {
	if i := strings.IndexByte(value, 0); i >= 0 {
		value = value[:i]
	}
	if len(value) <= MaxValueLen {
		return value, false
	}
	cut := MaxValueLen
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut], true
}

// IsSecret reports whether label holds a key or password.
func IsSecret(label string) bool {
	return strings.HasSuffix(label, "_KEY") || strings.HasSuffix(label, "_PWD")
}

func logValue(label, value string) *logrus.Entry {
	if IsSecret(label) {
		return log.WithFields(logger.Fields{"label": label, "len": len(value)})
	}
	return log.WithFields(logger.Fields{"label": label, "value": value})
}
