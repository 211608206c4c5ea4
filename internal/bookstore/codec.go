package bookstore

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks YAML for .yaml/.yml files and JSON otherwise.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	}
	return "", Newf(CodeInvalidInput, "unknown snapshot format %q", s)
}

func EncodeSnapshot(w io.Writer, s Snapshot, f Format) error {
	if f == FormatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encode yaml snapshot: %w", err)
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode json snapshot: %w", err)
	}
	return nil
}

// DecodeSnapshot reads one snapshot document. Malformed input is INVALID_INPUT.
func DecodeSnapshot(r io.Reader, f Format) (Snapshot, error) {
	var s Snapshot
	var err error
	if f == FormatYAML {
		err = yaml.NewDecoder(r).Decode(&s)
	} else {
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		err = dec.Decode(&s)
	}
	if err != nil {
		return Snapshot{}, Wrap(err, CodeInvalidInput, "malformed snapshot")
	}
	return s, nil
}
