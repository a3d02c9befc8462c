// Package hclstore implements store.Source on top of HCL files. Each file
// may declare any number of provider blocks:
//
//	provider "email" "primary" {
//	  module = "smtp"
//	  active = true
//	  options = {
//	    host = "smtp.example.com"
//	    port = 25
//	  }
//	}
//
// The options object is converted to a JSON blob, keeping the record
// format opaque to the registry core. Scanning is side-effect free, so the
// same path can be re-read on every reload.
package hclstore

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/vk/plugboard/internal/ctxlog"
	"github.com/vk/plugboard/internal/fsutil"
	"github.com/vk/plugboard/internal/store"
)

// Store reads provider records from all .hcl files under a root path.
type Store struct {
	path string
}

// New returns a Store rooted at path, which may be a single file's
// directory or a whole tree.
func New(path string) *Store {
	return &Store{path: path}
}

// hclProviderFile is the top-level structure of a provider records file.
type hclProviderFile struct {
	Providers []*hclProvider `hcl:"provider,block"`
}

// hclProvider is a single 'provider' block, labeled with area and name.
type hclProvider struct {
	Area string   `hcl:"area,label"`
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

// providerBodySchema describes the expected body of a provider block.
var providerBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "module", Required: true},
		{Name: "active"},
		{Name: "options"},
	},
}

// GetAll parses every .hcl file under the store's path and returns the
// records found, in lexical file order.
func (s *Store) GetAll(ctx context.Context) ([]store.Record, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading provider records.", "path", s.path)

	files, err := fsutil.FindFilesByExtension(s.path, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("hclstore: failed to find record files in %s: %w", s.path, err)
	}
	if len(files) == 0 {
		logger.Warn("No .hcl provider record files found in path.", "path", s.path)
		return nil, nil
	}

	parser := hclparse.NewParser()
	var records []store.Record
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		recs, err := parseRecordFile(parser, file)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}

	logger.Info("Provider records loaded.", "files", len(files), "records", len(records))
	return records, nil
}

// parseRecordFile decodes one HCL file into provider records.
func parseRecordFile(parser *hclparse.Parser, filePath string) ([]store.Record, error) {
	hclFile, diags := parser.ParseHCLFile(filePath)
	if diags.HasErrors() {
		return nil, fmt.Errorf("hclstore: failed to parse %s: %w", filePath, diags)
	}

	var parsed hclProviderFile
	diags = gohcl.DecodeBody(hclFile.Body, nil, &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("hclstore: failed to decode %s: %w", filePath, diags)
	}

	records := make([]store.Record, 0, len(parsed.Providers))
	for _, block := range parsed.Providers {
		rec, err := recordFromBlock(block, filePath)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// recordFromBlock converts one provider block into a store.Record,
// serializing the options object to JSON.
func recordFromBlock(block *hclProvider, filePath string) (store.Record, error) {
	rec := store.Record{
		ID:   fmt.Sprintf("%s#%s.%s", filePath, block.Area, block.Name),
		Area: block.Area,
		Name: block.Name,
	}

	content, diags := block.Body.Content(providerBodySchema)
	if diags.HasErrors() {
		return rec, fmt.Errorf("hclstore: provider %q %q in %s: %w", block.Area, block.Name, filePath, diags)
	}

	moduleAttr := content.Attributes["module"]
	if diags := gohcl.DecodeExpression(moduleAttr.Expr, nil, &rec.ModuleIdentifier); diags.HasErrors() {
		return rec, fmt.Errorf("hclstore: provider %q %q in %s: invalid module attribute: %w",
			block.Area, block.Name, filePath, diags)
	}

	if attr, exists := content.Attributes["active"]; exists {
		if diags := gohcl.DecodeExpression(attr.Expr, nil, &rec.Active); diags.HasErrors() {
			return rec, fmt.Errorf("hclstore: provider %q %q in %s: invalid active attribute: %w",
				block.Area, block.Name, filePath, diags)
		}
	}

	if attr, exists := content.Attributes["options"]; exists {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return rec, fmt.Errorf("hclstore: provider %q %q in %s: invalid options attribute: %w",
				block.Area, block.Name, filePath, diags)
		}
		if !val.IsNull() {
			raw, err := ctyjson.Marshal(val, val.Type())
			if err != nil {
				return rec, fmt.Errorf("hclstore: provider %q %q in %s: options are not serializable: %w",
					block.Area, block.Name, filePath, err)
			}
			rec.Options = string(raw)
		}
	}

	return rec, nil
}
