package ai

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// responseSchema constrains the model's reply: the three field maps are
// mandatory, confidences are numbers in [0, 1].
const responseSchema = `{
  "type": "object",
  "required": ["validated_fields", "confidence_scores", "rationale"],
  "properties": {
    "validated_fields": {
      "type": "object",
      "additionalProperties": {"type": ["string", "number", "null"]}
    },
    "confidence_scores": {
      "type": "object",
      "additionalProperties": {"type": "number", "minimum": 0, "maximum": 1}
    },
    "rationale": {
      "type": "object",
      "additionalProperties": {"type": "string"}
    },
    "summary": {"type": "string"}
  }
}`

var compiledSchema = jsonschema.MustCompileString("validation.json", responseSchema)

func validateResponse(doc []byte) error {
	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if err := compiledSchema.Validate(v); err != nil {
		return fmt.Errorf("response does not match schema: %w", err)
	}
	return nil
}
