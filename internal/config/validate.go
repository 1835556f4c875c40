package config

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaCUE string

// ValidationError reports a configuration that does not satisfy the schema.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// schemaView is the shape of Config as seen by schema.cue.
type schemaView struct {
	REDCap struct {
		URL                string  `json:"url"`
		TokenFile          string  `json:"token_file"`
		InsecureSkipVerify bool    `json:"insecure_skip_verify"`
		TimeoutSeconds     float64 `json:"timeout_seconds"`
	} `json:"redcap"`
	Query struct {
		Fields []string `json:"fields"`
		Forms  []string `json:"forms"`
		Events []string `json:"events"`
	} `json:"query"`
	Output struct {
		Path   string `json:"path"`
		Format string `json:"format"`
	} `json:"output"`
	History struct {
		Database string `json:"database"`
	} `json:"history"`
}

func (c *Config) view() schemaView {
	var v schemaView
	v.REDCap.URL = c.REDCap.URL
	v.REDCap.TokenFile = c.REDCap.TokenFile
	v.REDCap.InsecureSkipVerify = c.REDCap.InsecureSkipVerify
	v.REDCap.TimeoutSeconds = c.REDCap.Timeout.Seconds()
	v.Query.Fields = nonNil(c.Query.Fields)
	v.Query.Forms = nonNil(c.Query.Forms)
	v.Query.Events = nonNil(c.Query.Events)
	v.Output.Path = c.Output.Path
	v.Output.Format = c.Output.Format
	v.History.Database = c.History.Database
	return v
}

// Validate checks the configuration against the embedded CUE schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	data, err := json.Marshal(c.view())
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	value := ctx.CompileBytes(data, cue.Filename("config.json"))
	if err := value.Err(); err != nil {
		return fmt.Errorf("load config value: %w", err)
	}

	if err := def.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

// nonNil keeps empty lists as [] rather than null in the schema view.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
