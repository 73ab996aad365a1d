package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v3"

	"github.com/Alia5/syncbackend/internal/log"
	"github.com/Alia5/syncbackend/internal/publish"
	"github.com/Alia5/syncbackend/internal/weaver"
	"github.com/Alia5/syncbackend/wire"
)

const gameModule = `
name: Game
types:
  - namespace: Game
    name: Player
    baseType: Mirror.NetworkBehaviour
    fields:
      - name: health
        type: System.Int32
        attributes: [{type: Mirror.SyncVarAttribute}]
    methods:
      - name: CmdHeal
        attributes: [{type: Mirror.CommandAttribute}]
        parameters: [{name: amount, type: System.Int32}]
        body:
          - {op: ldarg.0}
          - {op: ldarg.1}
          - {op: stfld, operand: Game.Player.health}
          - {op: ret}
`

const gameProject = `
assets:
  - guid: "0123456789abcdef0123456789abcdef"
    path: Assets/Prefabs/Player.prefab
  - guid: "fedcba9876543210fedcba9876543210"
    path: Assets/Scenes/Main.unity
prefabs:
  - path: Assets/Prefabs/Player.prefab
    root:
      name: Player
      components:
        - type: Mirror.NetworkIdentity
          kind: networkIdentity
        - type: Game.Player
          kind: behaviour
          fields:
            health: {type: int, value: 100}
scenes:
  - path: Assets/Scenes/Main.unity
    roots:
      - name: Player(Clone)
        sceneId: 3
        assetGuid: "0123456789abcdef0123456789abcdef"
        components:
          - type: Mirror.NetworkIdentity
            kind: networkIdentity
          - type: Game.Player
            kind: behaviour
            fields:
              health: {type: int, value: 80}
activeScene: Assets/Scenes/Main.unity
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestWeaveRefreshPublish(t *testing.T) {
	dir := t.TempDir()
	work := filepath.Join(dir, "_SyncToBackend")
	module := writeFile(t, dir, "Game.yaml", gameModule)
	manifest := writeFile(t, dir, "project.yaml", gameProject)
	ctx := context.Background()

	w := &Weave{Inputs: []string{module}, Output: filepath.Join(work, wire.ArtifactName), Save: true}
	require.NoError(t, w.Execute(ctx, log.Discard(), log.NewRaw(nil)))

	saved, err := weaver.LoadModule(module)
	require.NoError(t, err)
	assert.NotNil(t, saved.Type("Game.Player").Method(weaver.ProcessedMarker))

	var out bytes.Buffer
	d := &Dump{Artifact: w.Output, Format: "yaml"}
	require.NoError(t, d.Write(&out, nil))
	var facts wire.Facts
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &facts))
	require.Len(t, facts.SyncFields, 1)
	assert.Equal(t, "health", facts.SyncFields[0].FieldName)

	r := &Refresh{ExportOptions: ExportOptions{
		Manifest:       manifest,
		Dir:            work,
		SceneExtension: ".unity",
		CacheSize:      16,
		Validate:       true,
	}}
	res, err := r.Execute(ctx, log.Discard(), nil)
	require.NoError(t, err)
	require.Len(t, res.Document.SyncVars, 1)
	assert.Equal(t, []byte{80, 0, 0, 0}, []byte(res.Document.SyncVars[0].InitialValue))
	assert.Len(t, res.Document.NetworkIdentities, 2)

	p := &Publish{Dir: work, Target: "file", Out: filepath.Join(dir, "published"), Prefix: "b1", Compress: true}
	require.NoError(t, p.Execute(ctx, log.Discard()))
	packed, err := os.ReadFile(filepath.Join(dir, "published", "b1", "tobackend.json.zst"))
	require.NoError(t, err)
	plain, err := publish.Decompress(packed)
	require.NoError(t, err)
	assert.Equal(t, res.Data, plain)

	meta, err := os.ReadFile(filepath.Join(dir, "published", "b1", "tobackend.json.zst"+publish.MetaSuffix))
	require.NoError(t, err)
	assert.Contains(t, string(meta), res.Digest)
	assert.Contains(t, string(meta), res.ArtifactDigest)
}

func TestWeaveReportsFailure(t *testing.T) {
	dir := t.TempDir()
	module := writeFile(t, dir, "Bad.json", `{"name":"Bad","types":[{"namespace":"Game","name":"Bad",
		"baseType":"Mirror.NetworkBehaviour","fields":[{"name":"count","type":"System.Int32","static":true,
		"attributes":[{"type":"SyncVar"}]}]}]}`)

	w := &Weave{Inputs: []string{module}, Output: filepath.Join(dir, "out", wire.ArtifactName)}
	err := w.Execute(context.Background(), log.Discard(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 error")

	// The artifact is written regardless.
	_, statErr := os.Stat(w.Output)
	assert.NoError(t, statErr)
}

func TestRefreshRequiresManifest(t *testing.T) {
	r := &Refresh{}
	_, err := r.Execute(context.Background(), log.Discard(), nil)
	assert.Error(t, err)
}

func TestConfigInit(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "refresh.json")
	c := &ConfigInit{Command: "refresh", Format: "json", Output: dest}
	require.NoError(t, c.Run())

	var got map[string]any
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "_SyncToBackend", got["dir"])
	assert.Equal(t, []any{"Assets/Mirror/Tests/", "Assets/Mirror/Examples/"}, got["skipPrefabs"])
	assert.Equal(t, false, got["play"])

	assert.Error(t, c.Run(), "existing file without --force")
	c.Force = true
	c.Format = "toml"
	assert.NoError(t, c.Run())

	serve := &ConfigInit{Command: "serve", Format: "yaml", Output: filepath.Join(dir, "serve.yaml")}
	require.NoError(t, serve.Run())
	data, err = os.ReadFile(serve.Output)
	require.NoError(t, err)
	var sv map[string]any
	require.NoError(t, yaml.Unmarshal(data, &sv))
	require.Contains(t, sv, "http")
	assert.Equal(t, ":3243", sv["http"].(map[string]any)["addr"])
}
