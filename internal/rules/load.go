package rules

import (
	"bytes"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// Load reads a YAML rule file and overlays it on the built-in defaults.
// Maps are merged key by key; lists in the file replace the default list.
func Load(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML rule tables on top of Default.
func Parse(data []byte) (*Tables, error) {
	t := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return t, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(t); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("validate rules: %w", err)
	}
	return t, nil
}

// Marshal renders tables as YAML, e.g. to seed an editable rules file.
func Marshal(t *Tables) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		return nil, fmt.Errorf("encode rules: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode rules: %w", err)
	}
	return buf.Bytes(), nil
}
