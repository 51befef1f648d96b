package httpapi

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/xeipuuv/gojsonschema"
)

var (
	//go:embed schemas/create_request.json
	createRequestSchema []byte

	//go:embed schemas/update_request.json
	updateRequestSchema []byte

	createValidator = mustCompile(createRequestSchema)
	updateValidator = mustCompile(updateRequestSchema)
)

func mustCompile(def []byte) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(def))
	if err != nil {
		panic(fmt.Sprintf("compile request schema: %v", err))
	}
	return s
}

// bodyProblems splits schema violations into missing required properties
// and everything else.
type bodyProblems struct {
	Missing []string
	Invalid []string
}

func (p bodyProblems) ok() bool {
	return len(p.Missing) == 0 && len(p.Invalid) == 0
}

// validateBody returns an error only when body is not a JSON document.
func validateBody(schema *gojsonschema.Schema, body []byte) (bodyProblems, error) {
	var p bodyProblems

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return p, err
	}
	if result.Valid() {
		return p, nil
	}

	for _, e := range result.Errors() {
		if e.Type() == "required" {
			if prop, ok := e.Details()["property"].(string); ok {
				p.Missing = append(p.Missing, prop)
				continue
			}
		}
		p.Invalid = append(p.Invalid, e.String())
	}
	sort.Strings(p.Missing)
	return p, nil
}
