package compiler

import (
	"fmt"
	"strings"

	"github.com/chazu/to2/parsec"
)

// ---------------------------------------------------------------------------
// Structural errors
// ---------------------------------------------------------------------------

// ErrorKind categorizes a structural error.
type ErrorKind int

const (
	ParseError ErrorKind = iota
	DuplicateModuleName
	DuplicateTypeName
	DuplicateConstantName
	DuplicateFunctionName
	DuplicateVariableName
	NoSuchModule
	NoSuchType
	NoSuchFunction
	NoSuchMethod
	NoSuchField
	NoSuchVariable
	NoSuchExport
	IncompatibleTypes
	InvalidType
	InvalidOperator
	InvalidScope
	InvalidPattern
	InvalidAssignment
	ArgumentMismatch
	UnresolvedGeneric
	CyclicDefinition
	ConstantEvaluation
)

var errorKindNames = map[ErrorKind]string{
	ParseError:            "ParseError",
	DuplicateModuleName:   "DuplicateModuleName",
	DuplicateTypeName:     "DuplicateTypeName",
	DuplicateConstantName: "DuplicateConstantName",
	DuplicateFunctionName: "DuplicateFunctionName",
	DuplicateVariableName: "DuplicateVariableName",
	NoSuchModule:          "NoSuchModule",
	NoSuchType:            "NoSuchType",
	NoSuchFunction:        "NoSuchFunction",
	NoSuchMethod:          "NoSuchMethod",
	NoSuchField:           "NoSuchField",
	NoSuchVariable:        "NoSuchVariable",
	NoSuchExport:          "NoSuchExport",
	IncompatibleTypes:     "IncompatibleTypes",
	InvalidType:           "InvalidType",
	InvalidOperator:       "InvalidOperator",
	InvalidScope:          "InvalidScope",
	InvalidPattern:        "InvalidPattern",
	InvalidAssignment:     "InvalidAssignment",
	ArgumentMismatch:      "ArgumentMismatch",
	UnresolvedGeneric:     "UnresolvedGeneric",
	CyclicDefinition:      "CyclicDefinition",
	ConstantEvaluation:    "ConstantEvaluation",
}

func (k ErrorKind) String() string {
	if s, ok := errorKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// StructuralError is one positioned compile error.
type StructuralError struct {
	Kind    ErrorKind
	Message string
	Module  string
	Start   parsec.Position
	End     parsec.Position
}

func (e *StructuralError) Error() string {
	loc := e.Start.String()
	if e.Module != "" {
		loc = e.Module + ":" + loc
	}
	return fmt.Sprintf("%s: %s: %s", loc, e.Kind, e.Message)
}

// CompilationErrors is the aggregate failure of a batch. It carries every
// error found in every module of the batch.
type CompilationErrors struct {
	Errors []*StructuralError
}

func (e *CompilationErrors) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d compilation errors:", len(e.Errors))
	for _, err := range e.Errors {
		sb.WriteString("\n  " + err.Error())
	}
	return sb.String()
}

func (e *CompilationErrors) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, err := range e.Errors {
		errs[i] = err
	}
	return errs
}

// Kinds lists the kinds of the collected errors in order, mostly for tests.
func (e *CompilationErrors) Kinds() []ErrorKind {
	kinds := make([]ErrorKind, len(e.Errors))
	for i, err := range e.Errors {
		kinds[i] = err.Kind
	}
	return kinds
}
