package notification

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidPayload is returned when an event does not satisfy its payload contract.
var ErrInvalidPayload = errors.New("invalid notification payload")

var payloadSchemas = map[Kind]string{
	KindNewVisit: `{
		"type": "object",
		"required": ["visit_id", "visit_name", "actor_id", "actor_name"],
		"properties": {
			"visit_id": {"type": "integer", "minimum": 1},
			"visit_name": {"type": "string", "minLength": 1},
			"actor_id": {"type": "integer", "minimum": 1},
			"actor_name": {"type": "string", "minLength": 1}
		}
	}`,
	KindVisitUpdated: `{
		"type": "object",
		"required": ["visit_id", "updater_id", "owner_id"],
		"properties": {
			"visit_id": {"type": "integer", "minimum": 1},
			"updater_id": {"type": "integer", "minimum": 1},
			"owner_id": {"type": "integer", "minimum": 1}
		}
	}`,
	KindVisitRejected: `{
		"type": "object",
		"required": ["visit_id", "visit_name", "message"],
		"properties": {
			"visit_id": {"type": "integer", "minimum": 1},
			"visit_name": {"type": "string", "minLength": 1},
			"message": {"type": "string", "minLength": 1}
		}
	}`,
	KindVisitVerified: `{
		"type": "object",
		"required": ["visit_id", "visit_name"],
		"properties": {
			"visit_id": {"type": "integer", "minimum": 1},
			"visit_name": {"type": "string", "minLength": 1}
		}
	}`,
	KindVisitDeleted: `{
		"type": "object",
		"required": ["visit_name", "actor_name", "actor_role"],
		"properties": {
			"visit_name": {"type": "string", "minLength": 1},
			"actor_name": {"type": "string", "minLength": 1},
			"actor_role": {"type": "string", "minLength": 1}
		}
	}`,
	KindVisitNeedsRevision: `{
		"type": "object",
		"required": ["visit_id", "visit_name"],
		"properties": {
			"visit_id": {"type": "integer", "minimum": 1},
			"visit_name": {"type": "string", "minLength": 1},
			"comment": {"type": "string"}
		}
	}`,
}

var (
	compileOnce sync.Once
	compiled    map[Kind]*jsonschema.Schema
	compileErr  error
)

func schemas() (map[Kind]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		out := make(map[Kind]*jsonschema.Schema, len(payloadSchemas))
		for kind, source := range payloadSchemas {
			url := "mem://notification/" + string(kind) + ".json"
			if err := compiler.AddResource(url, strings.NewReader(source)); err != nil {
				compileErr = fmt.Errorf("failed to load %s schema: %w", kind, err)
				return
			}
			schema, err := compiler.Compile(url)
			if err != nil {
				compileErr = fmt.Errorf("failed to compile %s schema: %w", kind, err)
				return
			}
			out[kind] = schema
		}
		compiled = out
	})
	return compiled, compileErr
}

// Validate checks the event payload against the contract of its kind.
func Validate(event Event) error {
	if event == nil || !event.Kind().Valid() {
		return fmt.Errorf("%w: unknown kind", ErrInvalidPayload)
	}

	all, err := schemas()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(event.Payload())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if err := all[event.Kind()].Validate(doc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, event.Kind(), err)
	}
	return nil
}
