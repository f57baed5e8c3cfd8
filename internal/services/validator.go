package services

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/cutmarket/backend/internal/models"
)

// Request payload schemas, named after their file in schemas/ without the .v1.json suffix.
const (
	SchemaCreateQuotation = "create_quotation"
	SchemaCreateBid       = "create_bid"
	SchemaUpdateBid       = "update_bid"
	SchemaSubmitWork      = "submit_work"
	SchemaWalletAmount    = "wallet_amount"
	SchemaPaymentWebhook  = "payment_webhook"
	SchemaSuspendEditor   = "suspend_editor"
	SchemaRegisterEditor  = "register_editor"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Validator checks raw request bodies against the embedded JSON schemas.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewValidator compiles every embedded schema. Formats (uuid, date-time) are asserted.
func NewValidator() (*Validator, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read embedded schemas: %w", err)
	}
	c := jsonschema.NewCompiler()
	c.AssertFormat = true
	schemas := make(map[string]*jsonschema.Schema)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(strings.TrimSuffix(e.Name(), ".json"), ".v1")
		data, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", e.Name(), err)
		}
		id := "https://cutmarket.dev/schemas/" + e.Name()
		if err := c.AddResource(id, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema %q: %w", name, err)
		}
		schemas[name], err = c.Compile(id)
		if err != nil {
			return nil, fmt.Errorf("compile schema %q: %w", name, err)
		}
	}
	return &Validator{schemas: schemas}, nil
}

// Validate performs a hard reject: it returns an error wrapping models.ErrInvalidArgument when
// payload is not JSON or does not match the named schema.
func (v *Validator) Validate(name string, payload []byte) error {
	schema, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", models.ErrInvalidArgument, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidArgument, err)
	}
	return nil
}
