package i18n

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/template"
)

//go:embed locales/*.json
var localeFS embed.FS

// Catalog maps dotted keys ("course.period") to strings per locale.
type Catalog struct {
	strings map[Locale]map[string]string
	lists   map[Locale]map[string][]string
}

var defaultCatalog = mustLoad()

// Default returns the catalog built from the embedded string tables.
func Default() *Catalog { return defaultCatalog }

func mustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// Load parses the embedded string tables. Every locale must define the same
// keys.
func Load() (*Catalog, error) {
	c := &Catalog{
		strings: make(map[Locale]map[string]string),
		lists:   make(map[Locale]map[string][]string),
	}
	for _, l := range Locales {
		data, err := localeFS.ReadFile("locales/" + string(l) + ".json")
		if err != nil {
			return nil, fmt.Errorf("read %s strings: %w", l, err)
		}
		var tree map[string]any
		if err := json.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("parse %s strings: %w", l, err)
		}
		c.strings[l] = make(map[string]string)
		c.lists[l] = make(map[string][]string)
		if err := c.flatten(l, "", tree); err != nil {
			return nil, err
		}
	}

	base := slices.Sorted(maps.Keys(c.strings[Locales[0]]))
	for _, l := range Locales[1:] {
		if got := slices.Sorted(maps.Keys(c.strings[l])); !slices.Equal(base, got) {
			return nil, fmt.Errorf("locale %s keys differ from %s", l, Locales[0])
		}
	}
	return c, nil
}

func (c *Catalog) flatten(l Locale, prefix string, node map[string]any) error {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case string:
			c.strings[l][key] = val
		case []any:
			list := make([]string, 0, len(val))
			for _, item := range val {
				s, ok := item.(string)
				if !ok {
					return fmt.Errorf("%s: %s must contain only strings", l, key)
				}
				list = append(list, s)
			}
			c.lists[l][key] = list
		case map[string]any:
			if err := c.flatten(l, key, val); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%s: unsupported value for %s", l, key)
		}
	}
	return nil
}

// T returns the string for key in locale l. Strings containing {{.Field}}
// placeholders are executed with data. A missing key renders as the key
// itself so gaps stay visible.
func (c *Catalog) T(l Locale, key string, data any) string {
	s, ok := c.strings[l][key]
	if !ok {
		return key
	}
	if data == nil || !strings.Contains(s, "{{") {
		return s
	}
	tmpl, err := template.New(key).Option("missingkey=zero").Parse(s)
	if err != nil {
		return s
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return s
	}
	return buf.String()
}

// List returns the string list for key in locale l.
func (c *Catalog) List(l Locale, key string) []string {
	return slices.Clone(c.lists[l][key])
}

// Has reports whether key exists in locale l.
func (c *Catalog) Has(l Locale, key string) bool {
	_, ok := c.strings[l][key]
	return ok
}
