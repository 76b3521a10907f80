package templates

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/acrebrook/modelgrid/internal/ctxlog"
	"github.com/acrebrook/modelgrid/internal/fsutil"
	"github.com/acrebrook/modelgrid/internal/recipe"
)

// HCL schema for user template manifests. Each file may hold any number
// of template blocks.
type manifestFile struct {
	Templates []*templateBlock `hcl:"template,block"`
	Body      hcl.Body         `hcl:",remain"`
}

type templateBlock struct {
	Kind    string         `hcl:"kind,label"`
	Doc     string         `hcl:"doc,optional"`
	Inputs  []*inputBlock  `hcl:"input,block"`
	Outputs []*outputBlock `hcl:"output,block"`
}

type inputBlock struct {
	Key     string `hcl:"key,label"`
	Default string `hcl:"default,optional"`
	Doc     string `hcl:"doc,optional"`
}

type outputBlock struct {
	Key     string `hcl:"key,label"`
	Name    string `hcl:"name,optional"`
	Formula string `hcl:"formula"`
	Type    string `hcl:"type,optional"`
	Solver  bool   `hcl:"solver,optional"`
}

// LoadManifests reads template definitions from an .hcl file or a
// directory of them and registers each one.
func (r *Registry) LoadManifests(ctx context.Context, path string) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading template manifests.", "path", path)

	filePaths, err := fsutil.ResolveSources(path, ".hcl")
	if err != nil {
		return fmt.Errorf("resolve template manifests: %w", err)
	}

	parser := hclparse.NewParser()
	for _, filePath := range filePaths {
		hclFile, diags := parser.ParseHCLFile(filePath)
		if diags.HasErrors() {
			return fmt.Errorf("parse template manifest %s: %w", filePath, diags)
		}

		var file manifestFile
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &file); diags.HasErrors() {
			return fmt.Errorf("decode template manifest %s: %w", filePath, diags)
		}

		for _, block := range file.Templates {
			t, err := translateTemplate(block)
			if err != nil {
				return fmt.Errorf("template manifest %s: %w", filePath, err)
			}
			if err := r.Register(t); err != nil {
				return fmt.Errorf("template manifest %s: %w", filePath, err)
			}
			logger.Debug("Registered template from manifest.", "kind", t.Kind, "file", filePath)
		}
	}
	return nil
}

func translateTemplate(block *templateBlock) (*Template, error) {
	t := &Template{Kind: block.Kind, Doc: block.Doc}
	for _, in := range block.Inputs {
		t.Inputs = append(t.Inputs, Input{Key: in.Key, Default: in.Default, Doc: in.Doc})
	}
	for _, out := range block.Outputs {
		vt, err := recipe.ParseValueType(out.Type)
		if err != nil {
			return nil, fmt.Errorf("template %q output %q: %w", block.Kind, out.Key, err)
		}
		name := out.Name
		if name == "" {
			name = out.Key
		}
		t.Outputs = append(t.Outputs, Output{
			Key:     out.Key,
			Name:    name,
			Formula: out.Formula,
			Type:    vt,
			Solver:  out.Solver,
		})
	}
	return t, nil
}
