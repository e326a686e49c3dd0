package llm

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonrepair"
)

// DecodeJSON unmarshals a model reply into out.
// Strict mode accepts only a well-formed JSON document. Lenient mode also strips
// markdown fences, unwraps double-encoded strings and repairs malformed JSON.
func DecodeJSON(text string, out any, lenient bool) error {
	text = strings.TrimSpace(text)
	err := json.Unmarshal([]byte(text), out)
	if err == nil || !lenient {
		return err
	}

	text = stripFences(text)
	if err := json.Unmarshal([]byte(text), out); err == nil {
		return nil
	}

	var asString string
	if err := json.Unmarshal([]byte(text), &asString); err == nil {
		text = strings.TrimSpace(asString)
		if err := json.Unmarshal([]byte(text), out); err == nil {
			return nil
		}
	}

	if !strings.Contains(text, "{") {
		return fmt.Errorf("no JSON object in reply: %w", err)
	}
	repaired, rerr := jsonrepair.JSONRepair(text)
	if rerr != nil {
		return fmt.Errorf("json repair failed: %w", rerr)
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("unmarshal after repair: %w", err)
	}
	return nil
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Schema returns the JSON Schema for the type of v as an indented string,
// suitable for embedding in a prompt.
func Schema(v any) string {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	schema := reflector.Reflect(reflect.New(t).Interface())
	b, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
