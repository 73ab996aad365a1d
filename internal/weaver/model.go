package weaver

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// Module is one compiled assembly as seen by the analyzer: its types in
// declaration order with enough of their bodies to trace remote calls.
type Module struct {
	Name  string     `json:"name" yaml:"name"`
	Types []*TypeDef `json:"types" yaml:"types"`

	path string
}

// TypeDef is a type declared in a module.
type TypeDef struct {
	Namespace         string       `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Name              string       `json:"name" yaml:"name"`
	BaseType          string       `json:"baseType,omitempty" yaml:"baseType,omitempty"`
	Kind              string       `json:"kind,omitempty" yaml:"kind,omitempty"`
	GenericParameters []string     `json:"genericParameters,omitempty" yaml:"genericParameters,omitempty"`
	Fields            []*FieldDef  `json:"fields,omitempty" yaml:"fields,omitempty"`
	Methods           []*MethodDef `json:"methods,omitempty" yaml:"methods,omitempty"`
}

// FieldDef is a field declaration.
type FieldDef struct {
	Name             string      `json:"name" yaml:"name"`
	Type             string      `json:"type" yaml:"type"`
	Static           bool        `json:"static,omitempty" yaml:"static,omitempty"`
	GenericParameter bool        `json:"genericParameter,omitempty" yaml:"genericParameter,omitempty"`
	SyncObject       bool        `json:"syncObject,omitempty" yaml:"syncObject,omitempty"`
	Attributes       []Attribute `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// MethodDef is a method declaration with its instruction stream.
type MethodDef struct {
	Name       string        `json:"name" yaml:"name"`
	Parameters []Parameter   `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Attributes []Attribute   `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Body       []Instruction `json:"body,omitempty" yaml:"body,omitempty"`
}

type Parameter struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// Attribute is a custom attribute with its named arguments.
type Attribute struct {
	Type string         `json:"type" yaml:"type"`
	Args map[string]any `json:"args,omitempty" yaml:"args,omitempty"`
}

// OpCode names the instructions the body scan understands. Anything else is
// carried through untouched.
type OpCode string

const (
	OpCall     OpCode = "call"
	OpCallvirt OpCode = "callvirt"
	OpStfld    OpCode = "stfld"
	OpLdarg0   OpCode = "ldarg.0"
	OpLdarg1   OpCode = "ldarg.1"
	OpLdarg2   OpCode = "ldarg.2"
	OpLdarg3   OpCode = "ldarg.3"
	OpLdargS   OpCode = "ldarg.s"
	OpRet      OpCode = "ret"
)

// Instruction is one body instruction. Operand holds "Type.Member" for calls
// and field stores, and the parameter name for ldarg.s.
type Instruction struct {
	Op      OpCode `json:"op" yaml:"op"`
	Operand string `json:"operand,omitempty" yaml:"operand,omitempty"`
}

// FullName is the namespace-qualified type name.
func (t *TypeDef) FullName() string {
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

// IsClass reports whether t is a reference type; an empty kind means class.
func (t *TypeDef) IsClass() bool {
	return t.Kind == "" || t.Kind == "class"
}

func (t *TypeDef) Method(name string) *MethodDef {
	for _, m := range t.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

func (t *TypeDef) Field(name string) *FieldDef {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (t *TypeDef) isGenericParameter(typ string) bool {
	for _, g := range t.GenericParameters {
		if g == typ {
			return true
		}
	}
	return false
}

// Type looks up a type by full name.
func (m *Module) Type(fullName string) *TypeDef {
	for _, t := range m.Types {
		if t.FullName() == fullName {
			return t
		}
	}
	return nil
}

// Path is the file the module was loaded from, if any.
func (m *Module) Path() string {
	return m.path
}

// HasAttribute matches short and qualified spellings: "SyncVar",
// "SyncVarAttribute" and "Mirror.SyncVarAttribute" are the same marker.
func HasAttribute(attrs []Attribute, name string) bool {
	_, ok := findAttribute(attrs, name)
	return ok
}

func findAttribute(attrs []Attribute, name string) (Attribute, bool) {
	for _, a := range attrs {
		if attributeName(a.Type) == name {
			return a, true
		}
	}
	return Attribute{}, false
}

func attributeName(t string) string {
	if i := strings.LastIndexByte(t, '.'); i >= 0 {
		t = t[i+1:]
	}
	return strings.TrimSuffix(t, "Attribute")
}

// BoolArg returns a named boolean argument, or def when absent or malformed.
func (a Attribute) BoolArg(name string, def bool) bool {
	switch v := a.Args[name].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def
		}
		return b
	default:
		return def
	}
}

// splitMember splits "Ns.Type.Member" into its declaring type and member.
func splitMember(ref string) (string, string, bool) {
	i := strings.LastIndexByte(ref, '.')
	if i <= 0 || i == len(ref)-1 {
		return "", "", false
	}
	return ref[:i], ref[i+1:], true
}

// LoadModule reads a module description from a .json, .yaml or .yml file.
func LoadModule(path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read module: %w", err)
	}
	var m Module
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &m)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	default:
		return nil, fmt.Errorf("unsupported module format: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse module %s: %w", path, err)
	}
	if m.Name == "" {
		m.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	m.path = path
	return &m, nil
}

// SaveModule writes m back in the format implied by path's extension.
func SaveModule(path string, m *Module) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(m, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(m)
	default:
		return fmt.Errorf("unsupported module format: %s", path)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
