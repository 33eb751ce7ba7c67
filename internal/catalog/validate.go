package catalog

import (
	"bytes"
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v6"

	verrors "github.com/vigilo-sh/vigilo/internal/errors"
)

// Validator compiles each tool's generated schema once and validates
// tools/call arguments against it, producing the -32602 "invalid params"
// JSON-RPC error on mismatch. Grounded on goadesign-goa-ai's use of
// santhosh-tekuri/jsonschema/v6, paired here with invopop/jsonschema's
// generation side (catalog.GenerateInputSchema) rather than the single
// reflection-only library the teacher itself uses.
type Validator struct {
	compiled map[string]*jsonschema.Schema
}

// NewValidator compiles every tool's schema from c up front.
func NewValidator(c *Catalog) (*Validator, error) {
	v := &Validator{compiled: make(map[string]*jsonschema.Schema, len(c.List()))}
	for _, t := range c.List() {
		schema, err := GenerateInputSchema(t.InputType)
		if err != nil {
			return nil, err
		}
		compiler := jsonschema.NewCompiler()
		var doc interface{}
		if err := json.Unmarshal(schema, &doc); err != nil {
			return nil, verrors.Wrap(verrors.KindSchema, "decoding generated schema for "+t.Name, err)
		}
		res := "vigilo://" + t.Name + ".json"
		if err := compiler.AddResource(res, doc); err != nil {
			return nil, verrors.Wrap(verrors.KindSchema, "registering schema for "+t.Name, err)
		}
		cs, err := compiler.Compile(res)
		if err != nil {
			return nil, verrors.Wrap(verrors.KindSchema, "compiling schema for "+t.Name, err)
		}
		v.compiled[t.Name] = cs
	}
	return v, nil
}

// Validate checks args against tool name's compiled schema.
func (v *Validator) Validate(name string, args json.RawMessage) error {
	schema, ok := v.compiled[name]
	if !ok {
		return verrors.New(verrors.KindNotFound, "no schema registered for tool "+name)
	}
	if len(args) == 0 {
		args = []byte("{}")
	}
	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return verrors.Wrap(verrors.KindParse, "decoding arguments", err)
	}
	if err := schema.Validate(doc); err != nil {
		return verrors.Wrap(verrors.KindSchema, "arguments failed schema validation", err)
	}
	return nil
}
