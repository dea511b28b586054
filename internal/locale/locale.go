// Package locale holds the keyword tables the slide classifier matches
// against. One table per language ships embedded in the binary; more can be
// dropped into a directory as JSON files of the same shape.
package locale

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed tables/*.json
var tablesFS embed.FS

// Table is the keyword set of one language.
type Table struct {
	Language string   `json:"language"`
	Cover    []string `json:"cover"`
	TOC      []string `json:"toc"`
	Ending   []string `json:"ending"`
	Divider  []string `json:"divider"`
}

// Keywords is the union of every loaded table.
type Keywords struct {
	Cover   []string
	TOC     []string
	Ending  []string
	Divider []string

	languages map[string]bool
}

// Default returns the keywords of the embedded tables.
func Default() (*Keywords, error) {
	k := &Keywords{languages: make(map[string]bool)}
	entries, err := tablesFS.ReadDir("tables")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		data, err := tablesFS.ReadFile("tables/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("could not read embedded table %s: %w", e.Name(), err)
		}
		if err := k.add(e.Name(), data); err != nil {
			return nil, err
		}
	}
	return k, nil
}

// Load returns the embedded keywords extended with every *.json table found
// in dir. An empty dir means the embedded tables only.
func Load(dir string) (*Keywords, error) {
	k, err := Default()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return k, nil
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyword directory %s: %w", dir, err)
	}
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, f.Name()))
		if err != nil {
			return nil, err
		}
		if err := k.add(f.Name(), data); err != nil {
			return nil, err
		}
	}
	return k, nil
}

func (k *Keywords) add(name string, data []byte) error {
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return fmt.Errorf("invalid keyword table %s: %w", name, err)
	}
	if t.Language == "" {
		t.Language = strings.TrimSuffix(name, filepath.Ext(name))
	}
	k.Merge(t)
	return nil
}

// Merge adds the keywords of t. Blank and repeated keywords are skipped.
func (k *Keywords) Merge(t Table) {
	if k.languages == nil {
		k.languages = make(map[string]bool)
	}
	k.languages[t.Language] = true
	k.Cover = appendUnique(k.Cover, t.Cover)
	k.TOC = appendUnique(k.TOC, t.TOC)
	k.Ending = appendUnique(k.Ending, t.Ending)
	k.Divider = appendUnique(k.Divider, t.Divider)
}

// Languages lists the loaded languages in sorted order.
func (k *Keywords) Languages() []string {
	langs := make([]string, 0, len(k.languages))
	for l := range k.languages {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}

func appendUnique(dst, src []string) []string {
	for _, s := range src {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		dup := false
		for _, d := range dst {
			if d == s {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, s)
		}
	}
	return dst
}
