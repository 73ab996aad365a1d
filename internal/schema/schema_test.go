package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/syncbackend/exporttypes"
	"github.com/Alia5/syncbackend/wire"
)

func sampleDocument() exporttypes.Document {
	doc := exporttypes.Document{
		Methods: []exporttypes.Method{{
			HashCode:          0x292c,
			SubClass:          "Foo",
			Name:              "CmdHeal",
			RequiresAuthority: true,
			Type:              wire.Command,
			RPCList:           []string{"Foo.ApplyHeal"},
		}},
		NetworkIdentities:          []exporttypes.NetworkIdentity{},
		NetworkManagerSettings:     []exporttypes.NetworkManagerSetting{},
		NetworkRoomManagerSettings: []exporttypes.NetworkRoomManagerSetting{},
		SyncVars: []exporttypes.SyncVar{{
			FullName: "Foo.hp", SubClass: "Foo", Name: "hp", Type: "int",
			InitialValue: exporttypes.ByteList{100, 0, 0, 0},
		}},
	}
	doc.Methods[0].Parameters.Set("amount", "int")
	doc.Methods[0].VarList.Set(1, []string{"Foo.hp"})
	doc.SceneIDs.Set("Assets/Scenes/Main.unity", nil)
	id := "42"
	doc.SceneIDs.Set("Assets/Scenes/Other.unity", &id)
	doc.Assets.Set(7, "Assets/Prefabs/Player.prefab")

	ni := exporttypes.NetworkIdentity{AssetID: 7, SceneID: &id}
	ni.Components.Set(0, exporttypes.Component{ComponentType: "Foo", Kind: exporttypes.KindOther})
	doc.NetworkIdentities = append(doc.NetworkIdentities, ni)
	return doc
}

func TestValidateDocument(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	data, err := json.Marshal(sampleDocument())
	require.NoError(t, err)
	assert.NoError(t, v.ValidateJSON(data))
}

func TestValidateRejects(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{`},
		{"missing sections", `{"methods": []}`},
		{"bad method kind", `{"methods":[{"hashCode":1,"subClass":"A","name":"B","requiresAuthority":true,"type":7,"parameters":[],"rpcList":[],"varList":[]}],
			"networkIdentities":[],"networkManagerSettings":[],"networkRoomManagerSettings":[],"sceneIds":[],"syncVars":[],"assets":[]}`},
		{"initial value out of range", `{"methods":[],"networkIdentities":[],"networkManagerSettings":[],"networkRoomManagerSettings":[],"sceneIds":[],
			"syncVars":[{"fullname":"A.b","subClass":"A","name":"b","type":"int","initialValue":[256],"dirtyBit":0}],"assets":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, v.ValidateJSON([]byte(tt.doc)))
		})
	}
}

func TestSourceIsCopy(t *testing.T) {
	s := Source()
	require.NotEmpty(t, s)
	s[0] = 'x'
	assert.NotEqual(t, s[0], Source()[0])
}
