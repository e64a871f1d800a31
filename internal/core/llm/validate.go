package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const invoiceSchemaURL = "invoice.schema.json"

// InvoiceSchema returns the compiled invoice extraction schema. It is built
// from BuildInvoiceJSONSchema on first use and shared afterwards.
var InvoiceSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	b, err := json.Marshal(BuildInvoiceJSONSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal invoice schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(invoiceSchemaURL, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add invoice schema: %w", err)
	}
	schema, err := compiler.Compile(invoiceSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile invoice schema: %w", err)
	}
	return schema, nil
})

// SchemaError reports an extraction payload that does not match the invoice
// schema. Fields holds the offending top-level invoice fields, when known.
type SchemaError struct {
	Fields []string
	Cause  error
}

func (e *SchemaError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("json does not match invoice schema: %v", e.Cause)
	}
	return fmt.Sprintf("json does not match invoice schema (fields: %s): %v", strings.Join(e.Fields, ", "), e.Cause)
}

func (e *SchemaError) Unwrap() error { return e.Cause }

// ValidateInvoiceJSON checks sanitized extractor output against InvoiceSchema.
func ValidateInvoiceJSON(data []byte) error {
	schema, err := InvoiceSchema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return &SchemaError{Fields: invalidFields(err), Cause: err}
	}
	return nil
}

// invalidFields collects the top-level property names named by the leaf
// causes of a validation error.
func invalidFields(err error) []string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil
	}
	seen := map[string]bool{}
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) > 0 {
			for _, c := range e.Causes {
				walk(c)
			}
			return
		}
		loc := strings.TrimPrefix(e.InstanceLocation, "/")
		if loc == "" {
			return
		}
		if i := strings.IndexByte(loc, '/'); i >= 0 {
			loc = loc[:i]
		}
		seen[loc] = true
	}
	walk(ve)

	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
