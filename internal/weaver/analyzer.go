package weaver

import (
	"strings"

	"github.com/Alia5/syncbackend/wire"
)

const (
	// ProcessedMarker is the zero-argument method added to every analyzed
	// class. Its presence makes a later pass skip the class.
	ProcessedMarker = "ToBackendWeaved"

	// deserializeMethod marks classes whose sync fields are handled by hand.
	deserializeMethod = "DeserializeSyncVars"
)

var syncObjectTypes = map[string]bool{
	"SyncObject":      true,
	"SyncList":        true,
	"SyncDictionary":  true,
	"SyncIDictionary": true,
	"SyncHashSet":     true,
	"SyncSortedSet":   true,
	"SyncSet":         true,
	"SyncVar":         true,
}

type typeRef struct {
	module *Module
	def    *TypeDef
}

// typeIndex resolves type names across every module of a session. The first
// module to declare a name owns it.
type typeIndex map[string]typeRef

func newTypeIndex(modules []*Module) typeIndex {
	ix := make(typeIndex)
	for _, m := range modules {
		for _, td := range m.Types {
			if _, ok := ix[td.FullName()]; !ok {
				ix[td.FullName()] = typeRef{module: m, def: td}
			}
		}
	}
	return ix
}

func (ix typeIndex) lookup(name string) (typeRef, bool) {
	ref, ok := ix[stripGenerics(name)]
	return ref, ok
}

// stripGenerics turns "Ns.List`1<System.Int32>" into "Ns.List".
func stripGenerics(name string) string {
	if i := strings.IndexAny(name, "<`"); i >= 0 {
		return name[:i]
	}
	return name
}

// Analyzer extracts facts from individual classes. It holds no per-pass
// state besides the diagnostics sink, so one Analyzer serves all workers.
type Analyzer struct {
	cfg   Config
	index typeIndex
	diags *Diagnostics
}

// CollectSyncFields returns the accepted sync fields of td, numbered from
// start, and the count the next derived class continues from.
func (a *Analyzer) CollectSyncFields(mod *Module, td *TypeDef, start int) ([]wire.SyncField, int) {
	return a.collectSyncFields(mod, td, start, true)
}

func (a *Analyzer) collectSyncFields(mod *Module, td *TypeDef, start int, report bool) ([]wire.SyncField, int) {
	var (
		out        []wire.SyncField
		count      = start
		overflowed bool
	)
	errorf := func(member, format string, args ...any) {
		if report {
			a.diags.Error(mod.Name, member, format, args...)
		}
	}

	for _, fd := range td.Fields {
		if !HasAttribute(fd.Attributes, "SyncVar") {
			continue
		}
		member := td.FullName() + "." + fd.Name

		if fd.Static {
			errorf(member, "%s cannot be static", fd.Name)
			continue
		}
		if fd.GenericParameter || td.isGenericParameter(fd.Type) {
			errorf(member, "%s has generic type. Generic SyncVars are not supported", fd.Name)
			continue
		}
		if a.isSyncObject(fd) {
			if report {
				a.diags.Warning(mod.Name, member, "%s has [SyncVar] attribute. SyncLists should not be marked with SyncVar", fd.Name)
			}
			continue
		}

		out = append(out, wire.SyncField{
			FullName:       member,
			DeclaringClass: td.FullName(),
			FieldName:      fd.Name,
			FieldType:      fd.Type,
			DirtyBit:       int32(count),
		})
		count++

		if count > wire.MaxSyncFields && !overflowed {
			overflowed = true
			errorf(td.FullName(), "%s has > %d SyncVars. Consider refactoring your class into multiple components", td.Name, wire.MaxSyncFields)
		}
	}
	return out, count
}

func (a *Analyzer) isSyncObject(fd *FieldDef) bool {
	if fd.SyncObject {
		return true
	}
	seen := map[string]bool{}
	name := fd.Type
	for name != "" && !seen[name] {
		seen[name] = true
		base := stripGenerics(name)
		if syncObjectTypes[strings.TrimPrefix(base, "Mirror.")] {
			return true
		}
		ref, ok := a.index.lookup(base)
		if !ok {
			return false
		}
		name = ref.def.BaseType
	}
	return false
}

// CollectMethods emits one record per method of td. Methods without a
// remote-call marker keep KindUnset. Only Command bodies are scanned.
func (a *Analyzer) CollectMethods(mod *Module, td *TypeDef) []wire.RemoteMethod {
	out := make([]wire.RemoteMethod, 0, len(td.Methods))
	for _, md := range td.Methods {
		rm := wire.RemoteMethod{
			DeclaringClass:    td.FullName(),
			Name:              md.Name,
			RequiresAuthority: true,
			Kind:              wire.KindUnset,
		}
		for _, attr := range md.Attributes {
			switch attributeName(attr.Type) {
			case "Command":
				rm.Kind = wire.Command
				rm.RequiresAuthority = attr.BoolArg("requiresAuthority", true)
			case "TargetRpc":
				rm.Kind = wire.TargetRpc
			case "ClientRpc":
				rm.Kind = wire.ClientRpc
			}
		}

		for _, p := range md.Parameters {
			rm.Parameters = append(rm.Parameters, wire.Parameter{Name: p.Name, Type: p.Type})
		}

		if rm.Kind == wire.Command {
			rm.CalledMethods, rm.FieldWrites = a.scanBody(mod, td, md)
		}
		out = append(out, rm)
	}
	return out
}

// scanBody collects direct calls to methods defined in mod, and field stores
// in mod whose value is loaded straight from an argument slot.
func (a *Analyzer) scanBody(mod *Module, td *TypeDef, md *MethodDef) ([]string, []wire.FieldWrites) {
	var (
		calls  []string
		writes []wire.FieldWrites
		slots  = map[uint8]int{}
	)

	for i, ins := range md.Body {
		switch ins.Op {
		case OpCall:
			if ref, ok := resolveMethod(mod, ins.Operand); ok {
				calls = append(calls, ref)
			}
		case OpStfld:
			field, ok := resolveField(mod, ins.Operand)
			if !ok || i == 0 {
				continue
			}
			slot, ok := a.argumentSlot(mod, td, md, md.Body[i-1])
			if !ok {
				continue
			}
			if at, seen := slots[slot]; seen {
				writes[at].Fields = append(writes[at].Fields, field)
				continue
			}
			slots[slot] = len(writes)
			writes = append(writes, wire.FieldWrites{Index: slot, Fields: []string{field}})
		}
	}
	return calls, writes
}

func (a *Analyzer) argumentSlot(mod *Module, td *TypeDef, md *MethodDef, prev Instruction) (uint8, bool) {
	switch prev.Op {
	case OpLdarg0:
		return 0, true
	case OpLdarg1:
		return 1, true
	case OpLdarg2:
		return 2, true
	case OpLdarg3:
		return 3, true
	case OpLdargS:
		for i, p := range md.Parameters {
			if p.Name == prev.Operand {
				return uint8(i + 1), true
			}
		}
		a.diags.Error(mod.Name, td.FullName()+"."+md.Name, "ldarg.s operand %q is not a parameter", prev.Operand)
		return 0, true
	default:
		return 0, false
	}
}

func resolveMethod(mod *Module, ref string) (string, bool) {
	typ, name, ok := splitMember(ref)
	if !ok {
		return "", false
	}
	td := mod.Type(typ)
	if td == nil || td.Method(name) == nil {
		return "", false
	}
	return td.FullName() + "." + name, true
}

func resolveField(mod *Module, ref string) (string, bool) {
	typ, name, ok := splitMember(ref)
	if !ok {
		return "", false
	}
	td := mod.Type(typ)
	if td == nil || td.Field(name) == nil {
		return "", false
	}
	return td.FullName() + "." + name, true
}
