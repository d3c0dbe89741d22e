package assertion

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jorge-barreto/ok/internal/fenced"
)

// Schema is the structured result requested from the agent.
const Schema = `{
  "type": "object",
  "properties": {
    "assertions": {
      "type": "array",
      "items": {"type": "string"}
    }
  },
  "required": ["assertions"],
  "additionalProperties": false
}`

const schemaURL = "https://ok.schemas.local/assertions.schema.json"

var (
	assertionObject = regexp.MustCompile(`\{[\s\S]*"assertions"[\s\S]*\}`)
	errNoAssertions = errors.New("no assertion list found in agent output")
)

func compileSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, strings.NewReader(Schema)); err != nil {
		return nil, fmt.Errorf("assertion schema load failed: %w", err)
	}
	return c.Compile(schemaURL)
}

type envelope struct {
	Assertions *[]string `json:"assertions"`
}

// decodeStrict validates a structured result against the schema.
func decodeStrict(schema *jsonschema.Schema, raw []byte) (List, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("structured result failed validation: %w", err)
	}
	return decodeLenient(raw)
}

// decodeLenient accepts any object with an assertions string array.
func decodeLenient(raw []byte) (List, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	if env.Assertions == nil {
		return nil, errNoAssertions
	}
	return Normalize(*env.Assertions), nil
}

// parseText recovers a list from free text: fenced json blocks first, then
// the widest object literal mentioning "assertions".
func parseText(text string) (List, error) {
	for _, b := range fenced.WithLang(fenced.Parse(text), "json") {
		if l, err := decodeLenient([]byte(b.Content)); err == nil {
			return l, nil
		}
	}
	if m := assertionObject.FindString(text); m != "" {
		if l, err := decodeLenient([]byte(m)); err == nil {
			return l, nil
		}
	}
	return nil, errNoAssertions
}
