package settings

import (
	"io"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// Export writes the current settings as a YAML list in slot order.
func (s *Store) Export(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s.Settings()); err != nil {
		return oops.Wrapf(err, "encode settings")
	}
	return enc.Close()
}

// Import reads a YAML list as produced by Export and applies it with the same
// rule as a form submission: known labels with non-empty values are saved,
// everything else is skipped. It returns how many settings were applied.
func (s *Store) Import(r io.Reader) (int, error) {
	var in []Setting
	if err := yaml.NewDecoder(r).Decode(&in); err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return 0, oops.Wrapf(err, "decode settings")
	}

	applied := 0
	for _, st := range in {
		if _, ok := s.catalog.Lookup(st.Label); !ok || st.Value == "" {
			continue
		}
		if err := s.Set(st.Label, st.Value); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}
