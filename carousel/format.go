package carousel

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// Format identifies one of the historical carousel JSON shapes.
type Format string

const (
	// FormatInline carries highlight arrays on each slide
	// (slides[].destaques).
	FormatInline Format = "inline"
	// FormatSeparated keeps highlights in a top-level list keyed by slide
	// number (destaques[].slide).
	FormatSeparated Format = "separated"
	// FormatLegacy is the original container (carrossel[]) with plain
	// negrito/italico substring lists.
	FormatLegacy Format = "legacy"
)

// detectionOrder is the order formats are tried in. The inline format is a
// strict superset of the others when present, so it goes first.
var detectionOrder = []Format{FormatInline, FormatSeparated, FormatLegacy}

// discriminators are the top-level keys whose presence makes a format's
// errors relevant to the caller.
var discriminators = map[Format][]string{
	FormatInline:    {"slides"},
	FormatSeparated: {"slides", "destaques"},
	FormatLegacy:    {"carrossel"},
}

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	schemasOnce sync.Once
	schemas     map[Format]*jsonschema.Resolved
	schemasErr  error
)

func loadSchemas() (map[Format]*jsonschema.Resolved, error) {
	schemasOnce.Do(func() {
		out := make(map[Format]*jsonschema.Resolved, len(detectionOrder))
		for _, f := range detectionOrder {
			raw, err := schemaFS.ReadFile("schemas/" + string(f) + ".json")
			if err != nil {
				schemasErr = fmt.Errorf("carousel: read %s schema: %w", f, err)
				return
			}
			var s jsonschema.Schema
			if err := json.Unmarshal(raw, &s); err != nil {
				schemasErr = fmt.Errorf("carousel: parse %s schema: %w", f, err)
				return
			}
			rs, err := s.Resolve(nil)
			if err != nil {
				schemasErr = fmt.Errorf("carousel: resolve %s schema: %w", f, err)
				return
			}
			out[f] = rs
		}
		schemas = out
	})
	return schemas, schemasErr
}

// hasDiscriminator reports whether every discriminator key of f is present.
func hasDiscriminator(doc map[string]any, f Format) bool {
	for _, k := range discriminators[f] {
		if _, ok := doc[k]; !ok {
			return false
		}
	}
	return true
}
