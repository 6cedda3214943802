// Package bindgen introspects Go packages and generates binding tables
// that expose them to TO2 scripts.
package bindgen

import "go/types"

// PackageModel is the bindable subset of a Go package's exported API.
type PackageModel struct {
	ImportPath string
	Name       string // short package name (e.g., "strings")
	Module     string // TO2 module name (e.g., "go::strings")
	Doc        string
	Functions  []FunctionModel
	Types      []TypeModel
	Constants  []ConstantModel
	Skipped    []Skip
}

// TypeModel represents an exported named type bound through its pointer.
type TypeModel struct {
	GoName  string
	Name    string
	Doc     string
	Fields  []FieldModel
	Methods []FunctionModel
}

// FunctionModel represents an exported function or method.
type FunctionModel struct {
	GoName     string
	Name       string // TO2 member name
	Doc        string
	Params     []ParamModel
	ReturnsErr bool // true if last result is error
}

// ParamModel represents a function parameter.
type ParamModel struct {
	Name   string
	GoType types.Type
}

// FieldModel represents a struct field read through a generated getter.
type FieldModel struct {
	GoName  string
	Name    string
	Doc     string
	TypeStr string // Go result type of the getter
	Convert bool   // the getter converts to TypeStr
}

// ConstantModel represents an exported constant.
type ConstantModel struct {
	GoName string
	Name   string
	Doc    string
	Conv   string // conversion applied in the generated table, may be empty
}

// Skip records an exported name that has no binding and why.
type Skip struct {
	Name   string
	Reason string
}
