package command

import (
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/vssbroker/errors"
)

var schemaSource = map[string]string{
	"authorize": `{
		"type": "object",
		"required": ["action", "requestId", "tokens"],
		"properties": {
			"requestId": {"type": ["string", "integer"]},
			"tokens": {"type": "string"}
		}
	}`,
	"kuksa-authorize": `{
		"type": "object",
		"required": ["action", "requestId", "clientid", "secret"],
		"properties": {
			"requestId": {"type": ["string", "integer"]},
			"clientid": {"type": "string"},
			"secret": {"type": "string"}
		}
	}`,
	"get": `{
		"type": "object",
		"required": ["action", "requestId", "path"],
		"properties": {
			"requestId": {"type": ["string", "integer"]},
			"path": {"type": ["string", "array"]}
		}
	}`,
	"set": `{
		"type": "object",
		"required": ["action", "requestId", "path", "value"],
		"properties": {
			"requestId": {"type": ["string", "integer"]},
			"path": {"type": ["string", "array"]}
		}
	}`,
	"subscribe": `{
		"type": "object",
		"required": ["action", "requestId", "path"],
		"properties": {
			"requestId": {"type": ["string", "integer"]},
			"path": {"type": ["string", "array"]}
		}
	}`,
	"unsubscribe": `{
		"type": "object",
		"required": ["action", "requestId", "subscriptionId"],
		"properties": {
			"requestId": {"type": ["string", "integer"]},
			"subscriptionId": {"type": ["string", "integer"]}
		}
	}`,
	"getMetadata": `{
		"type": "object",
		"required": ["action", "requestId", "path"],
		"properties": {
			"requestId": {"type": ["string", "integer"]},
			"path": {"type": ["string", "array"]}
		}
	}`,
}

var compiledSchemas map[string]*gojsonschema.Schema

func init() {
	compiledSchemas = make(map[string]*gojsonschema.Schema, len(schemaSource))
	for action, src := range schemaSource {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
		if err != nil {
			panic("command: invalid embedded schema for action '" + action + "': " + err.Error())
		}
		compiledSchemas[action] = schema
	}
}

// validateSchema checks raw against the JSON schema registered for action.
// An unrecognized action is itself a schema error: the dispatch table only
// knows the actions listed above.
func validateSchema(action string, raw []byte) error {
	schema, ok := compiledSchemas[action]
	if !ok {
		return errors.SchemaError("unknown action '" + action + "'")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return errors.SchemaError("schema validation failed: " + err.Error())
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return errors.SchemaError(strings.Join(msgs, "; "))
	}
	return nil
}
