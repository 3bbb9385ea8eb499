package table

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/artpar/tablekit/row"
)

// LoadDataset reads a static-table dataset from YAML: a mapping of
// dataset key to column values. Validation happens later, in
// NewStatic.
func LoadDataset(r io.Reader) (map[string]row.Row, error) {
	var raw map[string]map[string]any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	out := make(map[string]row.Row, len(raw))
	for key, values := range raw {
		rec := make(row.Row, len(values))
		for col, v := range values {
			rec[col] = v
		}
		out[key] = rec
	}
	return out, nil
}

// LoadDatasetFile reads a static-table dataset from a YAML file.
func LoadDatasetFile(path string) (map[string]row.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return LoadDataset(f)
}
