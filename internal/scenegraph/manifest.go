package scenegraph

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// PrefabExtension marks prefab assets in the asset list.
const PrefabExtension = ".prefab"

// Prefab is a prefab asset and its object tree.
type Prefab struct {
	Path string  `json:"path" yaml:"path"`
	Root *Object `json:"root" yaml:"root"`
}

// Scene is a scene asset and its root objects.
type Scene struct {
	Path  string    `json:"path" yaml:"path"`
	Roots []*Object `json:"roots,omitempty" yaml:"roots,omitempty"`
}

// Manifest is a Walker over a project snapshot described in one YAML (or
// JSON) document.
type Manifest struct {
	Assets  []Asset  `json:"assets" yaml:"assets"`
	Prefabs []Prefab `json:"prefabs,omitempty" yaml:"prefabs,omitempty"`
	Scenes  []Scene  `json:"scenes,omitempty" yaml:"scenes,omitempty"`
	Active  string   `json:"activeScene,omitempty" yaml:"activeScene,omitempty"`

	logger *slog.Logger
}

var _ Walker = (*Manifest)(nil)

// LoadManifest reads a manifest file.
func LoadManifest(path string, logger *slog.Logger) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := ParseManifest(data, logger)
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return m, nil
}

func ParseManifest(data []byte, logger *slog.Logger) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	m.logger = logger
	return &m, nil
}

// SetLogger sets where field introspection diagnostics go.
func (m *Manifest) SetLogger(logger *slog.Logger) {
	m.logger = logger
}

func (m *Manifest) EnumerateAllAssets() ([]Asset, error) {
	return append([]Asset(nil), m.Assets...), nil
}

// EnumeratePrefabs lists prefab assets first, in asset order, followed by
// prefabs that only appear in the prefab list.
func (m *Manifest) EnumeratePrefabs(folder string) ([]string, error) {
	var (
		out  []string
		seen = map[string]bool{}
	)
	add := func(p string) {
		if seen[p] || !inFolder(p, folder) {
			return
		}
		seen[p] = true
		out = append(out, p)
	}
	for _, a := range m.Assets {
		if strings.EqualFold(path.Ext(a.Path), PrefabExtension) {
			add(a.Path)
		}
	}
	for _, p := range m.Prefabs {
		add(p.Path)
	}
	return out, nil
}

func inFolder(p, folder string) bool {
	if folder == "" {
		return true
	}
	return strings.HasPrefix(p, strings.TrimSuffix(folder, "/")+"/")
}

// LoadPrefab returns the prefab's root object. A root without an asset GUID
// gets the GUID the asset list records for the prefab's path.
func (m *Manifest) LoadPrefab(p string) (*Object, error) {
	for _, pf := range m.Prefabs {
		if pf.Path != p {
			continue
		}
		if pf.Root == nil {
			return nil, fmt.Errorf("prefab %s: %w", p, ErrNotFound)
		}
		if pf.Root.AssetGUID == "" {
			pf.Root.AssetGUID = m.guidOf(p)
		}
		return pf.Root, nil
	}
	return nil, fmt.Errorf("prefab %s: %w", p, ErrNotFound)
}

func (m *Manifest) guidOf(p string) string {
	for _, a := range m.Assets {
		if a.Path == p {
			return a.GUID
		}
	}
	return ""
}

func (m *Manifest) ActiveScene() string {
	return m.Active
}

func (m *Manifest) ActiveSceneRoots() ([]*Object, error) {
	if m.Active == "" {
		return nil, nil
	}
	for _, s := range m.Scenes {
		if s.Path == m.Active {
			return s.Roots, nil
		}
	}
	return nil, fmt.Errorf("scene %s: %w", m.Active, ErrNotFound)
}

func (m *Manifest) Children(o *Object) []*Object {
	return o.Children
}

func (m *Manifest) ReplicationComponent(o *Object) (*Component, bool) {
	return firstOf(o, KindNetworkIdentity)
}

// ManagerComponent also matches room managers, which are managers too.
func (m *Manifest) ManagerComponent(o *Object) (*Component, bool) {
	return firstOf(o, KindNetworkManager, KindNetworkRoomManager)
}

func (m *Manifest) RoomManagerComponent(o *Object) (*Component, bool) {
	return firstOf(o, KindNetworkRoomManager)
}

func firstOf(o *Object, kinds ...ComponentKind) (*Component, bool) {
	for _, c := range o.Components {
		for _, k := range kinds {
			if c.Kind == k {
				return c, true
			}
		}
	}
	return nil, false
}

func (m *Manifest) Behaviours(o *Object) []*Component {
	var out []*Component
	var walk func(*Object)
	walk = func(o *Object) {
		for _, c := range o.Components {
			if c.Kind.IsBehaviour() {
				out = append(out, c)
			}
		}
		for _, child := range o.Children {
			walk(child)
		}
	}
	walk(o)
	return out
}

func (m *Manifest) ReadInitialFieldValue(c *Component, field string) []byte {
	f, ok := c.Fields[field]
	if !ok {
		m.log("Field not found", "component", c.Type, "field", field)
		return []byte{}
	}
	if f.Value == nil {
		m.log("Field has no initial value", "component", c.Type, "field", field)
		return []byte{}
	}
	data, err := EncodeValue(f.Type, f.Value)
	if err != nil {
		m.log("Cannot encode field value", "component", c.Type, "field", field, "error", err)
		return []byte{}
	}
	return data
}

func (m *Manifest) log(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Info(msg, args...)
	}
}
