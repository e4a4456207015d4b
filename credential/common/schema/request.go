// Package schema validates the JSON envelopes of issuing requests.
package schema

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/pilacorp/go-vc-issuer/credential/common/vcerr"
)

const normalizeRequestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["document"],
  "properties": {
    "document": {"type": ["object", "array"]}
  }
}`

const signRequestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["document"],
  "anyOf": [
    {"required": ["verification_method"]},
    {"required": ["issuer_verification_method"]}
  ],
  "properties": {
    "document": {"type": "object"},
    "verification_method": {"type": "string", "minLength": 1},
    "issuer_verification_method": {"type": "string", "minLength": 1},
    "options": {
      "type": "object",
      "properties": {
        "type": {"type": "string"},
        "created": {"type": "string"},
        "proofPurpose": {"type": "string"},
        "cryptosuite": {"type": "string"},
        "challenge": {"type": "string"},
        "domain": {"type": "string"}
      },
      "additionalProperties": false
    }
  }
}`

// Validator checks request bodies against a JSON schema.
type Validator struct {
	name   string
	schema *gojsonschema.Schema
}

// NewValidator compiles a JSON schema.
func NewValidator(name, schema string) (*Validator, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s schema: %w", name, err)
	}
	return &Validator{name: name, schema: compiled}, nil
}

func mustValidator(name, schema string) *Validator {
	v, err := NewValidator(name, schema)
	if err != nil {
		panic(err)
	}
	return v
}

var (
	// NormalizeRequest validates {"document": ...}.
	NormalizeRequest = mustValidator("normalize request", normalizeRequestSchema)
	// SignRequest validates {"document": {...}, "verification_method": "..."}.
	SignRequest = mustValidator("sign request", signRequestSchema)
)

// Validate returns vcerr.MalformedDocument listing every violation.
func (v *Validator) Validate(body []byte) error {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return vcerr.Wrap(vcerr.MalformedDocument, err, "request body is not valid JSON")
	}
	if result.Valid() {
		return nil
	}
	violations := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		violations = append(violations, e.String())
	}
	return vcerr.Newf(vcerr.MalformedDocument, "invalid %s: %s", v.name, strings.Join(violations, "; "))
}
