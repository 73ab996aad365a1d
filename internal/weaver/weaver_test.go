package weaver

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/syncbackend/internal/log"
	"github.com/Alia5/syncbackend/wire"
)

func syncVar(name, typ string) *FieldDef {
	return &FieldDef{Name: name, Type: typ, Attributes: []Attribute{{Type: "Mirror.SyncVarAttribute"}}}
}

func behaviour(ns, name, base string, fields ...*FieldDef) *TypeDef {
	return &TypeDef{Namespace: ns, Name: name, BaseType: base, Fields: fields}
}

func weave(t *testing.T, cfg Config, modules ...*Module) *Session {
	t.Helper()
	s, err := Weave(context.Background(), cfg, modules, log.Discard())
	require.NoError(t, err)
	return s
}

func healModule() *Module {
	player := behaviour("Game", "Player", "Mirror.NetworkBehaviour", syncVar("health", "System.Int32"))
	player.Methods = []*MethodDef{
		{
			Name:       "CmdHeal",
			Attributes: []Attribute{{Type: "Command"}},
			Parameters: []Parameter{{Name: "amount", Type: "System.Int32"}},
			Body: []Instruction{
				{Op: OpLdarg0},
				{Op: OpLdarg1},
				{Op: OpStfld, Operand: "Game.Player.health"},
				{Op: OpRet},
			},
		},
	}
	return &Module{Name: "Game", Types: []*TypeDef{player}}
}

func TestWeaveHeal(t *testing.T) {
	s := weave(t, DefaultConfig(), healModule())
	facts := s.Facts()

	require.Len(t, facts.SyncFields, 1)
	assert.Equal(t, wire.SyncField{
		FullName:       "Game.Player.health",
		DeclaringClass: "Game.Player",
		FieldName:      "health",
		FieldType:      "System.Int32",
		DirtyBit:       0,
	}, facts.SyncFields[0])

	require.Len(t, facts.Methods, 2)
	cmd := facts.Methods[0]
	assert.Equal(t, "CmdHeal", cmd.Name)
	assert.Equal(t, wire.Command, cmd.Kind)
	assert.True(t, cmd.RequiresAuthority)
	assert.Equal(t, []wire.Parameter{{Name: "amount", Type: "System.Int32"}}, cmd.Parameters)
	assert.Equal(t, []wire.FieldWrites{{Index: 1, Fields: []string{"Game.Player.health"}}}, cmd.FieldWrites)

	marker := facts.Methods[1]
	assert.Equal(t, ProcessedMarker, marker.Name)
	assert.Equal(t, wire.KindUnset, marker.Kind)

	assert.False(t, s.Diagnostics().Failed())
}

func TestDirtyBitsFollowInheritance(t *testing.T) {
	base := behaviour("Game", "Unit", "Mirror.NetworkBehaviour", syncVar("a", "int"), syncVar("b", "int"))
	mid := behaviour("Game", "Soldier", "Game.Unit", syncVar("c", "int"))
	leaf := behaviour("Game", "Sniper", "Game.Soldier", syncVar("d", "int"), syncVar("e", "int"))

	// Declared leaf first: bases must still be numbered first.
	s := weave(t, DefaultConfig(), &Module{Name: "Game", Types: []*TypeDef{leaf, mid, base}})

	bits := map[string]int32{}
	for _, f := range s.Facts().SyncFields {
		bits[f.FullName] = f.DirtyBit
	}
	assert.Equal(t, map[string]int32{
		"Game.Unit.a":    0,
		"Game.Unit.b":    1,
		"Game.Soldier.c": 2,
		"Game.Sniper.d":  3,
		"Game.Sniper.e":  4,
	}, bits)
}

func TestSyncFieldRejections(t *testing.T) {
	static := syncVar("s", "int")
	static.Static = true
	generic := syncVar("g", "T")
	list := syncVar("items", "Mirror.SyncList<int>")
	own := syncVar("inv", "Game.Inventory")

	td := behaviour("Game", "Bag", "Mirror.NetworkBehaviour", static, generic, list, own, syncVar("ok", "int"))
	td.GenericParameters = []string{"T"}
	inventory := &TypeDef{Namespace: "Game", Name: "Inventory", BaseType: "Mirror.SyncList`1<int>"}

	s := weave(t, DefaultConfig(), &Module{Name: "Game", Types: []*TypeDef{inventory, td}})

	fields := s.Facts().SyncFields
	require.Len(t, fields, 1)
	assert.Equal(t, "ok", fields[0].FieldName)
	assert.Equal(t, int32(0), fields[0].DirtyBit)

	errs, warns := s.Diagnostics().Count()
	assert.Equal(t, 2, errs)
	assert.Equal(t, 2, warns)
	assert.True(t, s.Diagnostics().Failed())
}

func TestSyncFieldOverflow(t *testing.T) {
	var fields []*FieldDef
	for i := range 66 {
		fields = append(fields, syncVar(fmt.Sprintf("f%d", i), "int"))
	}
	s := weave(t, DefaultConfig(), &Module{Name: "Big", Types: []*TypeDef{behaviour("", "Big", "Mirror.NetworkBehaviour", fields...)}})

	got := s.Facts().SyncFields
	require.Len(t, got, 66)
	for i, f := range got {
		assert.Equal(t, fmt.Sprintf("f%d", i), f.FieldName)
		assert.Equal(t, int32(i), f.DirtyBit, "field %s keeps its index", f.FieldName)
	}
	errs, _ := s.Diagnostics().Count()
	assert.Equal(t, 1, errs)
}

func TestFrameworkAncestorsAreNotAnalyzed(t *testing.T) {
	transformBase := behaviour("Mirror", "NetworkTransformBase", "Mirror.NetworkBehaviour", syncVar("target", "UnityEngine.Transform"))
	transformBase.Methods = []*MethodDef{{Name: "CmdTeleport", Attributes: []Attribute{{Type: "Command"}}}}
	reliable := behaviour("Mirror", "NetworkTransformReliable", "Mirror.NetworkTransformBase", syncVar("precision", "float"))
	framework := &Module{Name: "Mirror", Types: []*TypeDef{transformBase, reliable}}

	mover := behaviour("Game", "Mover", "Mirror.NetworkTransformReliable", syncVar("speed", "float"), syncVar("turn", "float"))
	game := &Module{Name: "Game", Types: []*TypeDef{mover}}

	s := weave(t, DefaultConfig(), framework, game)

	fields := s.Facts().SyncFields
	require.Len(t, fields, 2)
	assert.Equal(t, "Game.Mover.speed", fields[0].FullName)
	assert.Equal(t, int32(0), fields[0].DirtyBit)
	assert.Equal(t, int32(1), fields[1].DirtyBit)

	for _, m := range s.Facts().Methods {
		assert.Equal(t, "Game.Mover", m.DeclaringClass)
	}
	assert.Nil(t, transformBase.Method(ProcessedMarker))
	assert.Nil(t, reliable.Method(ProcessedMarker))
	assert.NotNil(t, mover.Method(ProcessedMarker))
	assert.Equal(t, []*Module{game}, s.Modified())
}

func TestReweaveEmitsNothing(t *testing.T) {
	mod := healModule()
	first := weave(t, DefaultConfig(), mod)
	require.NotEmpty(t, first.Facts().Methods)
	require.Equal(t, []*Module{mod}, first.Modified())
	require.NotNil(t, mod.Types[0].Method(ProcessedMarker))

	second := weave(t, DefaultConfig(), mod)
	assert.Empty(t, second.Facts().SyncFields)
	assert.Empty(t, second.Facts().Methods)
	assert.Empty(t, second.Modified())
}

func TestProcessedBaseStillNumbersChild(t *testing.T) {
	base := behaviour("Game", "Unit", "Mirror.NetworkBehaviour", syncVar("a", "int"), syncVar("b", "int"))
	base.Methods = []*MethodDef{{Name: ProcessedMarker}}
	child := behaviour("Game", "Hero", "Game.Unit", syncVar("c", "int"))

	s := weave(t, DefaultConfig(), &Module{Name: "Game", Types: []*TypeDef{base, child}})
	fields := s.Facts().SyncFields
	require.Len(t, fields, 1)
	assert.Equal(t, "Game.Hero.c", fields[0].FullName)
	assert.Equal(t, int32(2), fields[0].DirtyBit)
}

func TestManualDeserializeKeepsFieldsOut(t *testing.T) {
	td := behaviour("Game", "Custom", "Mirror.NetworkBehaviour", syncVar("x", "int"))
	td.Methods = []*MethodDef{{Name: "DeserializeSyncVars"}}
	s := weave(t, DefaultConfig(), &Module{Name: "Game", Types: []*TypeDef{td}})

	assert.Empty(t, s.Facts().SyncFields)
	assert.Len(t, s.Facts().Methods, 2)
}

func TestSkippedAndUnrelatedClasses(t *testing.T) {
	mirror := behaviour("Mirror", "NetworkTransform", "Mirror.NetworkBehaviour", syncVar("x", "int"))
	unity := behaviour("", "UnityHelper", "Mirror.NetworkBehaviour", syncVar("y", "int"))
	plain := behaviour("Game", "Plain", "System.Object", syncVar("z", "int"))
	orphan := behaviour("Game", "Orphan", "Elsewhere.Missing", syncVar("w", "int"))
	strct := behaviour("Game", "Value", "Mirror.NetworkBehaviour", syncVar("v", "int"))
	strct.Kind = "struct"

	s := weave(t, DefaultConfig(), &Module{Name: "Game", Types: []*TypeDef{mirror, unity, plain, orphan, strct}})
	assert.Empty(t, s.Facts().SyncFields)
	assert.Empty(t, s.Facts().Methods)
}

func TestMethodKindsAndScan(t *testing.T) {
	td := behaviour("Game", "Door", "Mirror.NetworkBehaviour", syncVar("open", "bool"), syncVar("owner", "string"))
	td.Methods = []*MethodDef{
		{
			Name:       "CmdOpen",
			Attributes: []Attribute{{Type: "Mirror.CommandAttribute", Args: map[string]any{"requiresAuthority": false}}},
			Parameters: []Parameter{{Name: "state", Type: "bool"}, {Name: "who", Type: "string"}},
			Body: []Instruction{
				{Op: OpLdarg0},
				{Op: OpLdargS, Operand: "who"},
				{Op: OpStfld, Operand: "Game.Door.owner"},
				{Op: OpLdarg0},
				{Op: OpLdarg1},
				{Op: OpStfld, Operand: "Game.Door.open"},
				{Op: OpLdarg0},
				{Op: OpLdarg2},
				{Op: OpStfld, Operand: "Game.Door.owner"},
				{Op: OpCall, Operand: "Game.Door.RpcOpened"},
				{Op: OpCall, Operand: "UnityEngine.Debug.Log"},
				{Op: OpLdarg1},
				{Op: OpStfld, Operand: "Other.Type.field"},
			},
		},
		{Name: "RpcOpened", Attributes: []Attribute{{Type: "ClientRpc"}}},
		{Name: "TargetNotify", Attributes: []Attribute{{Type: "TargetRpc"}}},
		{Name: "Update"},
	}

	s := weave(t, DefaultConfig(), &Module{Name: "Game", Types: []*TypeDef{td}})
	methods := s.Facts().Methods
	require.Len(t, methods, 5)

	cmd := methods[0]
	assert.False(t, cmd.RequiresAuthority)
	assert.Equal(t, []string{"Game.Door.RpcOpened"}, cmd.CalledMethods)
	assert.Equal(t, []wire.FieldWrites{
		{Index: 2, Fields: []string{"Game.Door.owner", "Game.Door.owner"}},
		{Index: 1, Fields: []string{"Game.Door.open"}},
	}, cmd.FieldWrites)

	assert.Equal(t, wire.ClientRpc, methods[1].Kind)
	assert.Nil(t, methods[1].CalledMethods)
	assert.Equal(t, wire.TargetRpc, methods[2].Kind)
	assert.Equal(t, wire.KindUnset, methods[3].Kind)
	assert.Equal(t, ProcessedMarker, methods[4].Name)
}

func TestParallelModulesShareBase(t *testing.T) {
	core := &Module{Name: "Core", Types: []*TypeDef{
		behaviour("Core", "Actor", "Mirror.NetworkBehaviour", syncVar("hp", "int"), syncVar("mp", "int")),
	}}

	var modules = []*Module{core}
	for i := range 8 {
		modules = append(modules, &Module{
			Name:  fmt.Sprintf("Feature%d", i),
			Types: []*TypeDef{behaviour(fmt.Sprintf("Feature%d", i), "Thing", "Core.Actor", syncVar("x", "int"))},
		})
	}

	cfg := DefaultConfig()
	cfg.Workers = 4
	s := weave(t, cfg, modules...)

	var coreFields int
	for _, f := range s.Facts().SyncFields {
		if f.DeclaringClass == "Core.Actor" {
			coreFields++
			continue
		}
		assert.Equal(t, int32(2), f.DirtyBit, f.FullName)
	}
	assert.Equal(t, 2, coreFields)
	assert.Len(t, s.Facts().SyncFields, 10)
	assert.Len(t, s.Modified(), 9)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Weave(ctx, DefaultConfig(), []*Module{healModule()}, log.Discard())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFlushRoundTrip(t *testing.T) {
	s := weave(t, DefaultConfig(), healModule())
	path := filepath.Join(t.TempDir(), wire.DefaultDir, wire.ArtifactName)

	data, err := s.Flush(path)
	require.NoError(t, err)

	facts, raw, err := wire.ReadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, data, raw)
	assert.Equal(t, s.Facts(), facts)
}

func TestLoadSaveModule(t *testing.T) {
	for _, ext := range []string{".json", ".yaml"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "Game"+ext)
			require.NoError(t, SaveModule(path, healModule()))

			m, err := LoadModule(path)
			require.NoError(t, err)
			assert.Equal(t, "Game", m.Name)
			assert.Equal(t, path, m.Path())
			require.Len(t, m.Types, 1)
			assert.Equal(t, "Game.Player", m.Types[0].FullName())
			assert.Len(t, m.Types[0].Methods[0].Body, 4)
		})
	}
	_, err := LoadModule("module.txt")
	assert.Error(t, err)
}
