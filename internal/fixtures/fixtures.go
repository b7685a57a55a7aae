// Package fixtures provides landmark payload fixtures for tests.
package fixtures

import (
	"embed"
	"fmt"
	"path"
	"strings"
)

//go:embed payloads
var payloadsFS embed.FS

// LoadPayload loads a request body by name, e.g. "valid/thumbs_up".
func LoadPayload(name string) ([]byte, error) {
	data, err := payloadsFS.ReadFile(path.Join("payloads", name+".json"))
	if err != nil {
		return nil, fmt.Errorf("load payload %s: %w", name, err)
	}
	return data, nil
}

// LoadSet loads every payload in dir keyed by base name.
func LoadSet(dir string) (map[string][]byte, error) {
	entries, err := payloadsFS.ReadDir(path.Join("payloads", dir))
	if err != nil {
		return nil, err
	}

	set := make(map[string][]byte, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".json")
		data, err := LoadPayload(dir + "/" + name)
		if err != nil {
			return nil, err
		}
		set[name] = data
	}
	return set, nil
}
