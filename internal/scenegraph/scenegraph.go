// Package scenegraph is the project view the exporter walks: assets, prefabs,
// the active scene and the replicated components on each object.
package scenegraph

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

// ComponentKind classifies a component the way the exporter consumes it.
type ComponentKind string

const (
	KindPlain                      ComponentKind = ""
	KindNetworkIdentity            ComponentKind = "networkIdentity"
	KindNetworkManager             ComponentKind = "networkManager"
	KindNetworkRoomManager         ComponentKind = "networkRoomManager"
	KindBehaviour                  ComponentKind = "behaviour"
	KindNetworkTransformBase       ComponentKind = "networkTransformBase"
	KindNetworkTransformReliable   ComponentKind = "networkTransformReliable"
	KindNetworkTransformUnreliable ComponentKind = "networkTransformUnreliable"
	KindNetworkAnimator            ComponentKind = "networkAnimator"
	KindNetworkRoomPlayer          ComponentKind = "networkRoomPlayer"
)

// IsBehaviour reports whether components of kind k are replicated
// behaviours.
func (k ComponentKind) IsBehaviour() bool {
	switch k {
	case KindBehaviour, KindNetworkTransformBase, KindNetworkTransformReliable,
		KindNetworkTransformUnreliable, KindNetworkAnimator, KindNetworkRoomPlayer:
		return true
	}
	return false
}

// Asset is one entry of the project's asset database.
type Asset struct {
	GUID string `json:"guid" yaml:"guid"`
	Path string `json:"path" yaml:"path"`
}

// Object is a node of a prefab or scene hierarchy.
type Object struct {
	Name string `json:"name" yaml:"name"`
	// SceneID is the placement id of a scene object, zero for prefabs.
	SceneID uint64 `json:"sceneId,omitempty" yaml:"sceneId,omitempty"`
	// AssetGUID is the GUID of the prefab the object was created from.
	AssetGUID  string       `json:"assetGuid,omitempty" yaml:"assetGuid,omitempty"`
	Components []*Component `json:"components,omitempty" yaml:"components,omitempty"`
	Children   []*Object    `json:"children,omitempty" yaml:"children,omitempty"`
}

// Component is a component attached to an Object.
type Component struct {
	Type string        `json:"type" yaml:"type"`
	Kind ComponentKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	// Settings holds the inspector values of framework components.
	Settings map[string]any `json:"settings,omitempty" yaml:"settings,omitempty"`
	// Fields holds serialized script fields by name.
	Fields map[string]Field `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Field is a serialized field: its declared type and current value. A
// missing or null value means the field holds no value.
type Field struct {
	Type  string `json:"type" yaml:"type"`
	Value any    `json:"value,omitempty" yaml:"value,omitempty"`
}

// DecodeSettings copies c's settings into v, which uses the export
// document's JSON field names.
func (c *Component) DecodeSettings(v any) error {
	if len(c.Settings) == 0 {
		return nil
	}
	data, err := json.Marshal(normalize(c.Settings))
	if err != nil {
		return fmt.Errorf("settings of %s: %w", c.Type, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("settings of %s: %w", c.Type, err)
	}
	return nil
}

// normalize converts the map[any]any values yaml can produce for non-string
// keys into JSON-marshalable maps.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}

// Walker is the read side of the project the exporter depends on.
type Walker interface {
	EnumerateAllAssets() ([]Asset, error)
	// EnumeratePrefabs lists prefab paths under folder; empty means all.
	EnumeratePrefabs(folder string) ([]string, error)
	LoadPrefab(path string) (*Object, error)
	ActiveScene() string
	ActiveSceneRoots() ([]*Object, error)
	Children(o *Object) []*Object
	ReplicationComponent(o *Object) (*Component, bool)
	ManagerComponent(o *Object) (*Component, bool)
	RoomManagerComponent(o *Object) (*Component, bool)
	// Behaviours lists the replicated behaviours of o and its descendants,
	// o first, depth first.
	Behaviours(o *Object) []*Component
	// ReadInitialFieldValue encodes a field's current value with the
	// replication writer. Missing fields and null values yield empty bytes.
	ReadInitialFieldValue(c *Component, field string) []byte
}
