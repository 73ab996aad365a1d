// Package csharp builds analyzer modules straight from C# sources, for
// projects where no compiled module description is available.
//
// The frontend is syntactic. Method bodies are lowered to the small
// instruction subset the analyzer scans: direct calls become call, and a
// field assigned from a parameter becomes ldarg.0, ldarg.N, stfld.
package csharp

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"

	"github.com/Alia5/syncbackend/internal/weaver"
)

// Extension of the source files LoadDir picks up.
const Extension = ".cs"

// Types the frontend qualifies with "Mirror." when a file imports Mirror.
var mirrorTypes = map[string]bool{
	"NetworkBehaviour": true,
	"SyncObject":       true,
	"SyncList":         true,
	"SyncDictionary":   true,
	"SyncIDictionary":  true,
	"SyncHashSet":      true,
	"SyncSortedSet":    true,
	"SyncSet":          true,
	"SyncVar":          true,
}

// Parser turns C# files into analyzer types. A Parser is not safe for
// concurrent use.
type Parser struct {
	parser *sitter.Parser
}

func NewParser() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(csharp.GetLanguage())
	return &Parser{parser: p}
}

type fileTypes struct {
	usings []string
	types  []*pendingType
}

type pendingType struct {
	def       *weaver.TypeDef
	namespace string
	usings    []string
	baseName  string
	fields    map[string]bool
	bodies    map[*weaver.MethodDef]*sitter.Node
	content   []byte
}

// LoadDir parses every .cs file below dir into one module named after the
// directory. Files are visited in lexical order.
func LoadDir(ctx context.Context, dir string) (*weaver.Module, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), Extension) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	sort.Strings(paths)
	return LoadFiles(ctx, filepath.Base(filepath.Clean(dir)), paths)
}

// LoadFiles parses paths, in order, into one module.
func LoadFiles(ctx context.Context, name string, paths []string) (*weaver.Module, error) {
	p := NewParser()
	sources := make(map[string][]byte, len(paths))
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		sources[path] = src
	}
	return p.ParseModule(ctx, name, paths, sources)
}

// ParseModule parses the named sources, in order, into one module.
func (p *Parser) ParseModule(ctx context.Context, name string, order []string, sources map[string][]byte) (*weaver.Module, error) {
	var (
		pending []*pendingType
		trees   []*sitter.Tree
	)
	defer func() {
		for _, t := range trees {
			t.Close()
		}
	}()

	for _, file := range order {
		src := sources[file]
		tree, err := p.parser.ParseCtx(ctx, nil, src)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		trees = append(trees, tree)

		ft := &fileTypes{}
		collect(tree.RootNode(), src, "", "", ft)
		pending = append(pending, ft.types...)
	}

	known := make(map[string]bool, len(pending))
	for _, pt := range pending {
		known[pt.def.FullName()] = true
	}

	mod := &weaver.Module{Name: name}
	for _, pt := range pending {
		if pt.baseName != "" {
			pt.def.BaseType = resolveType(pt.baseName, pt.namespace, pt.usings, known)
		}
		for _, md := range pt.def.Methods {
			if body := pt.bodies[md]; body != nil {
				md.Body = lower(body, pt, md, known)
			}
		}
		mod.Types = append(mod.Types, pt.def)
	}
	return mod, nil
}

// collect walks declarations, tracking the enclosing namespace and type.
func collect(n *sitter.Node, src []byte, namespace, outer string, ft *fileTypes) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "using_directive":
			if u := usingName(child, src); u != "" {
				ft.usings = append(ft.usings, u)
			}
		case "namespace_declaration":
			ns := joinName(namespace, nodeText(child.ChildByFieldName("name"), src))
			if body := child.ChildByFieldName("body"); body != nil {
				collect(body, src, ns, "", ft)
			}
		case "file_scoped_namespace_declaration":
			namespace = joinName(namespace, nodeText(child.ChildByFieldName("name"), src))
			collect(child, src, namespace, "", ft)
		case "class_declaration", "struct_declaration", "interface_declaration", "enum_declaration", "record_declaration":
			pt := declareType(child, src, namespace, outer, ft)
			ft.types = append(ft.types, pt)
			if body := child.ChildByFieldName("body"); body != nil {
				collect(body, src, namespace, pt.def.Name, ft)
			}
		case "declaration_list":
			collect(child, src, namespace, outer, ft)
		}
	}
}

func declareType(n *sitter.Node, src []byte, namespace, outer string, ft *fileTypes) *pendingType {
	name := nodeText(n.ChildByFieldName("name"), src)
	if outer != "" {
		name = outer + "/" + name
	}
	td := &weaver.TypeDef{Namespace: namespace, Name: name, Kind: kindOf(n.Type())}
	pt := &pendingType{
		def:       td,
		namespace: namespace,
		usings:    slices.Clone(ft.usings),
		fields:    map[string]bool{},
		bodies:    map[*weaver.MethodDef]*sitter.Node{},
		content:   src,
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "type_parameter_list":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				td.GenericParameters = append(td.GenericParameters, nodeText(child.NamedChild(j), src))
			}
		case "base_list":
			if child.NamedChildCount() > 0 && td.Kind == "class" {
				pt.baseName = nodeText(child.NamedChild(0), src)
			}
		}
	}

	body := n.ChildByFieldName("body")
	if body == nil {
		return pt
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		switch member.Type() {
		case "field_declaration":
			for _, fd := range fieldDefs(member, src) {
				td.Fields = append(td.Fields, fd)
				pt.fields[fd.Name] = true
			}
		case "method_declaration":
			md, block := methodDef(member, src)
			if md.Name == "" {
				continue
			}
			td.Methods = append(td.Methods, md)
			pt.bodies[md] = block
		}
	}
	return pt
}

func kindOf(nodeType string) string {
	switch nodeType {
	case "struct_declaration":
		return "struct"
	case "interface_declaration":
		return "interface"
	case "enum_declaration":
		return "enum"
	default:
		return "class"
	}
}

func fieldDefs(n *sitter.Node, src []byte) []*weaver.FieldDef {
	var (
		attrs  []weaver.Attribute
		static bool
		decl   *sitter.Node
	)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "attribute_list":
			attrs = append(attrs, attributes(child, src)...)
		case "modifier":
			if nodeText(child, src) == "static" || nodeText(child, src) == "const" {
				static = true
			}
		case "variable_declaration":
			decl = child
		}
	}
	if decl == nil {
		return nil
	}

	typ := nodeText(decl.ChildByFieldName("type"), src)
	var out []*weaver.FieldDef
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		v := decl.NamedChild(i)
		if v.Type() != "variable_declarator" {
			continue
		}
		out = append(out, &weaver.FieldDef{
			Name:       nameOf(v, src),
			Type:       typ,
			Static:     static,
			Attributes: attrs,
		})
	}
	return out
}

func methodDef(n *sitter.Node, src []byte) (*weaver.MethodDef, *sitter.Node) {
	md := &weaver.MethodDef{Name: nodeText(n.ChildByFieldName("name"), src)}
	var body *sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "attribute_list":
			md.Attributes = append(md.Attributes, attributes(child, src)...)
		case "parameter_list":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				p := child.NamedChild(j)
				if p.Type() != "parameter" {
					continue
				}
				md.Parameters = append(md.Parameters, weaver.Parameter{
					Name: nameOf(p, src),
					Type: nodeText(p.ChildByFieldName("type"), src),
				})
			}
		case "block", "arrow_expression_clause":
			body = child
		}
	}
	return md, body
}

func attributes(list *sitter.Node, src []byte) []weaver.Attribute {
	var out []weaver.Attribute
	for i := 0; i < int(list.NamedChildCount()); i++ {
		a := list.NamedChild(i)
		if a.Type() != "attribute" {
			continue
		}
		attr := weaver.Attribute{Type: nodeText(a.ChildByFieldName("name"), src)}
		for j := 0; j < int(a.NamedChildCount()); j++ {
			args := a.NamedChild(j)
			if args.Type() != "attribute_argument_list" {
				continue
			}
			for k := 0; k < int(args.NamedChildCount()); k++ {
				key, value, ok := namedArgument(nodeText(args.NamedChild(k), src))
				if !ok {
					continue
				}
				if attr.Args == nil {
					attr.Args = map[string]any{}
				}
				attr.Args[key] = value
			}
		}
		out = append(out, attr)
	}
	return out
}

// namedArgument splits "requiresAuthority = false" or "requiresAuthority: false".
func namedArgument(text string) (string, any, bool) {
	i := strings.IndexAny(text, "=:")
	if i <= 0 {
		return "", nil, false
	}
	key := strings.TrimSpace(text[:i])
	raw := strings.TrimSpace(text[i+1:])
	if b, err := strconv.ParseBool(raw); err == nil {
		return key, b, true
	}
	return key, strings.Trim(raw, `"`), true
}

// lower emits the instructions the analyzer understands, in evaluation
// order.
func lower(body *sitter.Node, pt *pendingType, md *weaver.MethodDef, known map[string]bool) []weaver.Instruction {
	var out []weaver.Instruction
	params := map[string]int{}
	for i, p := range md.Parameters {
		params[p.Name] = i + 1
	}
	src := pt.content
	self := pt.def.FullName()

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
		switch n.Type() {
		case "invocation_expression":
			fn := n.ChildByFieldName("function")
			if fn == nil && n.NamedChildCount() > 0 {
				fn = n.NamedChild(0)
			}
			if target := callTarget(nodeText(fn, src), pt, known); target != "" {
				out = append(out, weaver.Instruction{Op: weaver.OpCall, Operand: target})
			}
		case "assignment_expression":
			left, right := n.ChildByFieldName("left"), n.ChildByFieldName("right")
			if left == nil || right == nil {
				return
			}
			field := strings.TrimPrefix(nodeText(left, src), "this.")
			slot, ok := params[nodeText(right, src)]
			if !ok || !pt.fields[field] {
				return
			}
			out = append(out,
				weaver.Instruction{Op: weaver.OpLdarg0},
				loadArg(slot, md.Parameters[slot-1].Name),
				weaver.Instruction{Op: weaver.OpStfld, Operand: self + "." + field},
			)
		}
	}
	walk(body)
	return out
}

func loadArg(slot int, name string) weaver.Instruction {
	switch slot {
	case 1:
		return weaver.Instruction{Op: weaver.OpLdarg1}
	case 2:
		return weaver.Instruction{Op: weaver.OpLdarg2}
	case 3:
		return weaver.Instruction{Op: weaver.OpLdarg3}
	default:
		return weaver.Instruction{Op: weaver.OpLdargS, Operand: name}
	}
}

func callTarget(fn string, pt *pendingType, known map[string]bool) string {
	fn = strings.TrimPrefix(fn, "this.")
	if i := strings.IndexByte(fn, '<'); i >= 0 {
		fn = fn[:i]
	}
	if fn == "" {
		return ""
	}
	i := strings.LastIndexByte(fn, '.')
	if i < 0 {
		return pt.def.FullName() + "." + fn
	}
	return resolveType(fn[:i], pt.namespace, pt.usings, known) + "." + fn[i+1:]
}

// resolveType qualifies a written type name against the enclosing namespaces
// and the file's using directives, preferring types declared in the module.
func resolveType(name, namespace string, usings []string, known map[string]bool) string {
	bare := name
	if i := strings.IndexByte(bare, '<'); i >= 0 {
		bare = bare[:i]
	}
	if known[bare] {
		return name
	}
	for ns := namespace; ns != ""; ns = parentNamespace(ns) {
		if known[ns+"."+bare] {
			return ns + "." + name
		}
	}
	for _, u := range usings {
		if known[u+"."+bare] {
			return u + "." + name
		}
	}
	if mirrorTypes[bare] && slices.Contains(usings, "Mirror") {
		return "Mirror." + name
	}
	return name
}

func parentNamespace(ns string) string {
	if i := strings.LastIndexByte(ns, '.'); i >= 0 {
		return ns[:i]
	}
	return ""
}

func usingName(n *sitter.Node, src []byte) string {
	text := strings.TrimSpace(nodeText(n, src))
	text = strings.TrimPrefix(text, "global ")
	text = strings.TrimPrefix(text, "using ")
	text = strings.TrimSuffix(strings.TrimSpace(text), ";")
	if strings.HasPrefix(text, "static ") || strings.Contains(text, "=") {
		return ""
	}
	return strings.TrimSpace(text)
}

func nameOf(n *sitter.Node, src []byte) string {
	if name := n.ChildByFieldName("name"); name != nil {
		return nodeText(name, src)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "identifier" {
			return nodeText(c, src)
		}
	}
	return ""
}

func nodeText(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return n.Content(src)
}

func joinName(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	return a + "." + b
}
