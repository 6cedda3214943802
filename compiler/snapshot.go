package compiler

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/to2/types"
	"github.com/chazu/to2/vm"
)

// ---------------------------------------------------------------------------
// Interface snapshots
// ---------------------------------------------------------------------------

var snapshotEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("compiler: failed to create CBOR enc mode: %v", err))
	}
	snapshotEncMode = em
}

// ModuleInterface is the public surface of one module: what other modules
// and hosts can refer to.
type ModuleInterface struct {
	Name        string              `cbor:"1,keyasint" json:"name"`
	Description string              `cbor:"2,keyasint,omitempty" json:"description,omitempty"`
	Types       []TypeInterface     `cbor:"3,keyasint,omitempty" json:"types,omitempty"`
	Constants   []ConstantInterface `cbor:"4,keyasint,omitempty" json:"constants,omitempty"`
	Functions   []string            `cbor:"5,keyasint,omitempty" json:"functions,omitempty"`
}

// TypeInterface describes an exported type. Fields and methods are listed
// for structs only.
type TypeInterface struct {
	Name    string   `cbor:"1,keyasint" json:"name"`
	Type    string   `cbor:"2,keyasint" json:"type"`
	Fields  []string `cbor:"3,keyasint,omitempty" json:"fields,omitempty"`
	Methods []string `cbor:"4,keyasint,omitempty" json:"methods,omitempty"`
}

// ConstantInterface describes an exported constant and its value.
type ConstantInterface struct {
	Name  string `cbor:"1,keyasint" json:"name"`
	Type  string `cbor:"2,keyasint" json:"type"`
	Value string `cbor:"3,keyasint" json:"value"`
}

// Describe builds the interface of a module. Names are sorted, so equal
// modules describe equally.
func Describe(m types.Module) ModuleInterface {
	out := ModuleInterface{Name: m.Name(), Description: m.Description()}
	for _, name := range m.TypeNames() {
		t := m.FindType(name)
		ti := TypeInterface{Name: name, Type: t.Name()}
		if d, ok := t.(*types.DeclaredType); ok {
			for _, f := range d.Fields {
				ti.Fields = append(ti.Fields, f.Name+": "+f.Type.Name())
			}
			for _, method := range sortedNames(d.Methods) {
				for _, fn := range d.Methods[method].All() {
					ti.Methods = append(ti.Methods, fn.Signature())
				}
			}
		}
		out.Types = append(out.Types, ti)
	}
	for _, name := range m.ConstantNames() {
		c := m.FindConstant(name)
		out.Constants = append(out.Constants, ConstantInterface{
			Name:  name,
			Type:  c.Type.Name(),
			Value: vm.FormatValue(c.Value),
		})
	}
	for _, name := range m.FunctionNames() {
		for _, fn := range m.FindFunction(name).All() {
			out.Functions = append(out.Functions, fn.Signature())
		}
	}
	return out
}

// Interfaces describes the named modules, or every registered module when
// no name is given.
func (r *Registry) Interfaces(names ...string) ([]ModuleInterface, error) {
	if len(names) == 0 {
		names = r.ModuleNames()
	}
	out := make([]ModuleInterface, 0, len(names))
	for _, name := range names {
		m := r.Module(name)
		if m == nil {
			return nil, fmt.Errorf("no module %s", name)
		}
		out = append(out, Describe(m))
	}
	return out, nil
}

// Snapshot encodes the interfaces of the named modules as canonical CBOR.
// Compiling the same sources twice yields the same bytes.
func (r *Registry) Snapshot(names ...string) ([]byte, error) {
	ifaces, err := r.Interfaces(names...)
	if err != nil {
		return nil, err
	}
	return snapshotEncMode.Marshal(ifaces)
}

// Fingerprint returns the hex SHA-256 of a snapshot, for telling whether
// an interface changed.
func (r *Registry) Fingerprint(names ...string) (string, error) {
	data, err := r.Snapshot(names...)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
