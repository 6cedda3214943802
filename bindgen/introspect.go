package bindgen

import (
	"errors"
	"fmt"
	"go/ast"
	"go/constant"
	"go/doc"
	"go/types"
	"math"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"
)

// IntrospectPackage loads a Go package by import path and returns the part
// of its API that maps onto TO2 types. The includeFilter, if non-nil,
// restricts which exported names are considered.
func IntrospectPackage(importPath string, includeFilter map[string]bool) (*PackageModel, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedTypes | packages.NeedSyntax,
	}

	pkgs, err := packages.Load(cfg, importPath)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", importPath, err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found for %s", importPath)
	}
	if len(pkgs[0].Errors) > 0 {
		return nil, fmt.Errorf("package errors: %v", pkgs[0].Errors)
	}

	pkg := pkgs[0]
	if pkg.Types == nil {
		return nil, fmt.Errorf("type information not available for %s", importPath)
	}
	return buildModel(pkg.Types, collectDocs(pkg.Syntax), includeFilter), nil
}

func buildModel(pkg *types.Package, docs map[string]string, includeFilter map[string]bool) *PackageModel {
	model := &PackageModel{
		ImportPath: pkg.Path(),
		Name:       pkg.Name(),
		Module:     ModuleName(pkg.Path()),
		Doc:        docs[""],
	}
	in := &introspector{pkg: pkg, docs: docs, bound: map[*types.Named]bool{}, model: model}

	scope := pkg.Scope()
	var names []string
	for _, name := range scope.Names() {
		obj := scope.Lookup(name)
		if !obj.Exported() || (includeFilter != nil && !includeFilter[name]) {
			continue
		}
		names = append(names, name)
		if tn, ok := obj.(*types.TypeName); ok {
			if named, ok := tn.Type().(*types.Named); ok && bindableType(named) {
				in.bound[named] = true
			}
		}
	}

	seen := map[string]bool{}
	for _, name := range names {
		switch o := scope.Lookup(name).(type) {
		case *types.Func:
			fm, err := in.function(o.Name(), o.Type().(*types.Signature), false)
			if err == nil && seen[fm.Name] {
				err = fmt.Errorf("name %s is already taken", fm.Name)
			}
			if err != nil {
				in.skip(name, err)
				continue
			}
			seen[fm.Name] = true
			fm.Doc = docs[name]
			model.Functions = append(model.Functions, fm)

		case *types.TypeName:
			if tm := in.typeModel(o); tm != nil {
				model.Types = append(model.Types, *tm)
			}

		case *types.Const:
			cm, err := constantModel(o)
			if err != nil {
				in.skip(name, err)
				continue
			}
			cm.Doc = docs[name]
			model.Constants = append(model.Constants, cm)
		}
	}
	return model
}

type introspector struct {
	pkg   *types.Package
	docs  map[string]string
	bound map[*types.Named]bool
	model *PackageModel
}

func (in *introspector) skip(name string, err error) {
	in.model.Skipped = append(in.model.Skipped, Skip{Name: name, Reason: err.Error()})
}

// bindableType reports whether a named type is bound through its pointer.
// Interfaces and generic types are left out.
func bindableType(named *types.Named) bool {
	if named.TypeParams().Len() > 0 {
		return false
	}
	switch named.Underlying().(type) {
	case *types.Struct:
		return true
	}
	return false
}

func (in *introspector) typeModel(tn *types.TypeName) *TypeModel {
	named, ok := tn.Type().(*types.Named)
	if !ok || !in.bound[named] {
		if _, basic := tn.Type().Underlying().(*types.Basic); !basic {
			in.skip(tn.Name(), errors.New("only struct types are bound"))
		}
		return nil
	}

	tm := &TypeModel{GoName: tn.Name(), Name: tn.Name(), Doc: in.docs[tn.Name()]}
	taken := map[string]bool{}

	st := named.Underlying().(*types.Struct)
	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		if !f.Exported() || f.Embedded() {
			continue
		}
		typeStr, convert, err := in.getterType(f.Type())
		if err != nil {
			in.skip(tn.Name()+"."+f.Name(), err)
			continue
		}
		name := SnakeCase(f.Name())
		taken[name] = true
		tm.Fields = append(tm.Fields, FieldModel{
			GoName:  f.Name(),
			Name:    name,
			Doc:     in.docs[tn.Name()+"."+f.Name()],
			TypeStr: typeStr,
			Convert: convert,
		})
	}

	// Methods of the pointer method set, including value-receiver ones.
	mset := types.NewMethodSet(types.NewPointer(named))
	for i := 0; i < mset.Len(); i++ {
		sel := mset.At(i)
		fn, ok := sel.Obj().(*types.Func)
		if !ok || !fn.Exported() || len(sel.Index()) > 1 {
			continue
		}
		member := tn.Name() + "." + fn.Name()
		fm, err := in.function(fn.Name(), fn.Type().(*types.Signature), true)
		if err == nil && taken[fm.Name] {
			err = fmt.Errorf("name %s is already taken", fm.Name)
		}
		if err != nil {
			in.skip(member, err)
			continue
		}
		taken[fm.Name] = true
		fm.Doc = in.docs[member]
		tm.Methods = append(tm.Methods, fm)
	}
	sort.Slice(tm.Methods, func(i, j int) bool { return tm.Methods[i].Name < tm.Methods[j].Name })
	return tm
}

func (in *introspector) function(name string, sig *types.Signature, method bool) (FunctionModel, error) {
	fm := FunctionModel{GoName: name, Name: SnakeCase(name)}
	if sig.TypeParams().Len() > 0 {
		return fm, errors.New("generic functions are not bound")
	}
	if sig.Variadic() {
		return fm, errors.New("variadic functions cannot be bound")
	}

	params := sig.Params()
	for i := 0; i < params.Len(); i++ {
		p := params.At(i)
		if err := in.mappable(p.Type()); err != nil {
			return fm, fmt.Errorf("parameter %d: %w", i+1, err)
		}
		pname := p.Name()
		if pname == "" || pname == "_" {
			pname = fmt.Sprintf("arg%d", i+1)
		}
		fm.Params = append(fm.Params, ParamModel{Name: SnakeCase(pname), GoType: p.Type()})
	}

	results := sig.Results()
	outs := results.Len()
	if outs > 0 && isErrorType(results.At(outs-1).Type()) {
		fm.ReturnsErr = true
		outs--
	}
	switch outs {
	case 0:
	case 1:
		if err := in.mappable(results.At(0).Type()); err != nil {
			return fm, fmt.Errorf("result: %w", err)
		}
	default:
		return fm, fmt.Errorf("%d results", outs)
	}
	return fm, nil
}

// mappable mirrors the type mapping of the binding package.
func (in *introspector) mappable(t types.Type) error {
	switch u := t.Underlying().(type) {
	case *types.Basic:
		switch u.Kind() {
		case types.Int, types.Int64, types.Float64, types.Bool, types.String:
			return nil
		}
		return fmt.Errorf("%s has no TO2 mapping", t)
	case *types.Slice:
		if _, named := t.(*types.Named); named {
			return fmt.Errorf("named slice %s has no TO2 mapping", t)
		}
		return in.mappable(u.Elem())
	case *types.Pointer:
		if named, ok := u.Elem().(*types.Named); ok && in.bound[named] {
			return nil
		}
	}
	return fmt.Errorf("%s has no TO2 mapping", t)
}

// getterType is the result type written in a generated field getter.
// Named basic types are converted to their underlying type.
func (in *introspector) getterType(t types.Type) (string, bool, error) {
	if err := in.mappable(t); err != nil {
		return "", false, err
	}
	switch u := t.Underlying().(type) {
	case *types.Basic:
		_, named := t.(*types.Named)
		return u.Name(), named, nil
	case *types.Slice:
		elem, ok := u.Elem().(*types.Basic)
		if !ok {
			return "", false, fmt.Errorf("field of type %s needs a conversion", t)
		}
		return "[]" + elem.Name(), false, nil
	case *types.Pointer:
		return "*" + in.pkg.Name() + "." + u.Elem().(*types.Named).Obj().Name(), false, nil
	}
	return "", false, fmt.Errorf("%s has no TO2 mapping", t)
}

func constantModel(c *types.Const) (ConstantModel, error) {
	cm := ConstantModel{GoName: c.Name(), Name: ConstantName(c.Name())}
	val := c.Val()
	switch val.Kind() {
	case constant.Int:
		if _, exact := constant.Int64Val(val); !exact {
			return cm, errors.New("value does not fit in int")
		}
		cm.Conv = "int64"
	case constant.Float:
		if f, _ := constant.Float64Val(val); math.IsInf(f, 0) {
			return cm, errors.New("value does not fit in float")
		}
		cm.Conv = "float64"
	case constant.String, constant.Bool:
	default:
		return cm, fmt.Errorf("%s constants have no TO2 mapping", val.Kind())
	}
	return cm, nil
}

func isErrorType(t types.Type) bool {
	return types.Identical(t, types.Universe.Lookup("error").Type())
}

// collectDocs maps "Name" and "Type.Member" to the first sentence of their
// doc comments; the package doc is stored under "".
func collectDocs(files []*ast.File) map[string]string {
	docs := map[string]string{}
	var p doc.Package
	put := func(key string, cg *ast.CommentGroup) {
		if cg == nil {
			return
		}
		if s := p.Synopsis(cg.Text()); s != "" {
			docs[key] = strings.TrimSpace(s)
		}
	}
	for _, f := range files {
		if docs[""] == "" {
			put("", f.Doc)
		}
		for _, decl := range f.Decls {
			switch d := decl.(type) {
			case *ast.FuncDecl:
				key := d.Name.Name
				if d.Recv != nil && len(d.Recv.List) == 1 {
					key = receiverName(d.Recv.List[0].Type) + "." + key
				}
				put(key, d.Doc)
			case *ast.GenDecl:
				for _, spec := range d.Specs {
					switch s := spec.(type) {
					case *ast.TypeSpec:
						cg := s.Doc
						if cg == nil {
							cg = d.Doc
						}
						put(s.Name.Name, cg)
						if st, ok := s.Type.(*ast.StructType); ok {
							for _, field := range st.Fields.List {
								for _, n := range field.Names {
									put(s.Name.Name+"."+n.Name, field.Doc)
								}
							}
						}
					case *ast.ValueSpec:
						cg := s.Doc
						if cg == nil && len(d.Specs) == 1 {
							cg = d.Doc
						}
						for _, n := range s.Names {
							put(n.Name, cg)
						}
					}
				}
			}
		}
	}
	return docs
}

func receiverName(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.StarExpr:
		return receiverName(e.X)
	case *ast.Ident:
		return e.Name
	case *ast.IndexExpr:
		return receiverName(e.X)
	}
	return ""
}
