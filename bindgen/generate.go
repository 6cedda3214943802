package bindgen

import (
	"bytes"
	"fmt"
	"strconv"
	"text/template"

	"golang.org/x/tools/imports"
)

// Options controls the generated file.
type Options struct {
	Package string // Go package of the generated file
	Var     string // exported variable holding the module; derived when empty
	Module  string // TO2 module name; the model's when empty
}

// Generate renders a Go source file declaring a *binding.Module for the
// model. The output is gofmt-formatted.
func Generate(model *PackageModel, opts Options) ([]byte, error) {
	if opts.Package == "" {
		return nil, fmt.Errorf("no package name for the generated file")
	}
	if opts.Var == "" {
		opts.Var = VarName(model.Name)
	}
	m := *model
	if opts.Module != "" {
		m.Module = opts.Module
	}

	var buf bytes.Buffer
	err := fileTemplate.Execute(&buf, struct {
		*PackageModel
		Package string
		Var     string
	}{&m, opts.Package, opts.Var})
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", model.ImportPath, err)
	}
	out, err := imports.Process(opts.Package+".go", buf.Bytes(), &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("formatting %s: %w\n%s", model.ImportPath, err, buf.Bytes())
	}
	return out, nil
}

var fileTemplate = template.Must(template.New("file").Funcs(template.FuncMap{
	"quote": strconv.Quote,
}).Parse(`// Code generated by to2-bindgen from {{.ImportPath}}; DO NOT EDIT.
{{- range .Skipped}}
// skipped {{.Name}}: {{.Reason}}
{{- end}}

package {{.Package}}

import (
	{{.Name}} {{quote .ImportPath}}

	"github.com/chazu/to2/binding"
)

// {{.Var}} binds the Go package {{.ImportPath}} as {{.Module}}.
var {{.Var}} = &binding.Module{
	Name:        {{quote .Module}},
	Description: {{quote .Doc}},
{{- if .Types}}
	Types: []binding.Type{
{{- range $t := .Types}}
		{
			Name:        {{quote $t.Name}},
			Description: {{quote $t.Doc}},
			Zero:        (*{{$.Name}}.{{$t.GoName}})(nil),
{{- if $t.Fields}}
			Fields: []binding.Field{
{{- range $t.Fields}}
				{Name: {{quote .Name}}, Description: {{quote .Doc}}, Get: func(v *{{$.Name}}.{{$t.GoName}}) {{.TypeStr}} { return {{if .Convert}}{{.TypeStr}}(v.{{.GoName}}){{else}}v.{{.GoName}}{{end}} }},
{{- end}}
			},
{{- end}}
{{- if $t.Methods}}
			Methods: []binding.Method{
{{- range $t.Methods}}
				{Name: {{quote .Name}}, Description: {{quote .Doc}}, Fn: (*{{$.Name}}.{{$t.GoName}}).{{.GoName}}{{template "params" .}}},
{{- end}}
			},
{{- end}}
		},
{{- end}}
	},
{{- end}}
{{- if .Functions}}
	Funcs: []binding.Func{
{{- range .Functions}}
		{Name: {{quote .Name}}, Description: {{quote .Doc}}, Fn: {{$.Name}}.{{.GoName}}{{template "params" .}}},
{{- end}}
	},
{{- end}}
{{- if .Constants}}
	Constants: []binding.Constant{
{{- range .Constants}}
		{Name: {{quote .Name}}, Description: {{quote .Doc}}, Value: {{if .Conv}}{{.Conv}}({{$.Name}}.{{.GoName}}){{else}}{{$.Name}}.{{.GoName}}{{end}}},
{{- end}}
	},
{{- end}}
}
{{define "params"}}{{if .Params}}, Params: []binding.Param{ {{- range $i, $p := .Params}}{{if $i}}, {{end}}{Name: {{quote $p.Name}}}{{end -}} }{{end}}{{end}}
`))
