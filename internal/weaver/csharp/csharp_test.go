package csharp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/syncbackend/internal/log"
	"github.com/Alia5/syncbackend/internal/weaver"
	"github.com/Alia5/syncbackend/wire"
)

const playerSource = `using Mirror;
using UnityEngine;

namespace Game
{
    public class Player : NetworkBehaviour
    {
        [SyncVar] public int health;
        [SyncVar] public static int count;
        public float speed;

        [Command]
        public void CmdHeal(int amount)
        {
            health = amount;
            Refresh();
        }

        [ClientRpc]
        void RpcFlash() {}

        void Refresh() {}
    }
}
`

const soldierSource = `using Mirror;

namespace Game
{
    public class Soldier : Player
    {
        [SyncVar] public string rank;

        [Command(requiresAuthority = false)]
        public void CmdPromote(string newRank)
        {
            this.rank = newRank;
        }
    }
}
`

func writeSources(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "Assembly-CSharp")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Units"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Player.cs"), []byte(playerSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Units", "Soldier.cs"), []byte(soldierSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("not code"), 0o644))
	return dir
}

func TestLoadDir(t *testing.T) {
	mod, err := LoadDir(context.Background(), writeSources(t))
	require.NoError(t, err)
	assert.Equal(t, "Assembly-CSharp", mod.Name)

	player := mod.Type("Game.Player")
	require.NotNil(t, player)
	assert.Equal(t, "Mirror.NetworkBehaviour", player.BaseType)
	require.Len(t, player.Fields, 3)
	assert.True(t, weaver.HasAttribute(player.Fields[0].Attributes, "SyncVar"))
	assert.True(t, player.Fields[1].Static)

	heal := player.Method("CmdHeal")
	require.NotNil(t, heal)
	assert.Equal(t, []weaver.Parameter{{Name: "amount", Type: "int"}}, heal.Parameters)
	assert.Equal(t, []weaver.Instruction{
		{Op: weaver.OpLdarg0},
		{Op: weaver.OpLdarg1},
		{Op: weaver.OpStfld, Operand: "Game.Player.health"},
		{Op: weaver.OpCall, Operand: "Game.Player.Refresh"},
	}, heal.Body)

	soldier := mod.Type("Game.Soldier")
	require.NotNil(t, soldier)
	assert.Equal(t, "Game.Player", soldier.BaseType)
}

func TestLoadDirWeaves(t *testing.T) {
	mod, err := LoadDir(context.Background(), writeSources(t))
	require.NoError(t, err)

	s, err := weaver.Weave(context.Background(), weaver.DefaultConfig(), []*weaver.Module{mod}, log.Discard())
	require.NoError(t, err)

	bits := map[string]int32{}
	for _, f := range s.Facts().SyncFields {
		bits[f.FullName] = f.DirtyBit
	}
	assert.Equal(t, map[string]int32{"Game.Player.health": 0, "Game.Soldier.rank": 1}, bits)

	var promote *wire.RemoteMethod
	for i, m := range s.Facts().Methods {
		if m.Name == "CmdPromote" {
			promote = &s.Facts().Methods[i]
		}
	}
	require.NotNil(t, promote)
	assert.Equal(t, wire.Command, promote.Kind)
	assert.False(t, promote.RequiresAuthority)
	assert.Equal(t, []wire.FieldWrites{{Index: 1, Fields: []string{"Game.Soldier.rank"}}}, promote.FieldWrites)
}

func TestResolveType(t *testing.T) {
	known := map[string]bool{"Game.Units.Tank": true, "Shared.Base": true}
	tests := []struct {
		name, ns string
		usings   []string
		expected string
	}{
		{"Tank", "Game.Units", nil, "Game.Units.Tank"},
		{"Tank", "Game.Units.Heavy", nil, "Game.Units.Tank"},
		{"Base", "Game", []string{"Shared"}, "Shared.Base"},
		{"NetworkBehaviour", "Game", []string{"Mirror"}, "Mirror.NetworkBehaviour"},
		{"SyncList<int>", "Game", []string{"Mirror"}, "Mirror.SyncList<int>"},
		{"NetworkBehaviour", "Game", nil, "NetworkBehaviour"},
		{"Shared.Base", "Game", nil, "Shared.Base"},
	}
	for _, tt := range tests {
		t.Run(tt.name+"@"+tt.ns, func(t *testing.T) {
			assert.Equal(t, tt.expected, resolveType(tt.name, tt.ns, tt.usings, known))
		})
	}
}

func TestNamedArgument(t *testing.T) {
	k, v, ok := namedArgument("requiresAuthority = false")
	require.True(t, ok)
	assert.Equal(t, "requiresAuthority", k)
	assert.Equal(t, false, v)

	k, v, ok = namedArgument(`channel: "reliable"`)
	require.True(t, ok)
	assert.Equal(t, "channel", k)
	assert.Equal(t, "reliable", v)

	_, _, ok = namedArgument("0")
	assert.False(t, ok)
}
