// Package exporttypes defines the consolidated export document and the
// per-object fragments it is assembled from.
package exporttypes

import "github.com/Alia5/syncbackend/wire"

// Document is the consolidated export handed to the backend.
type Document struct {
	Methods                    []Method                    `json:"methods"`
	NetworkIdentities          []NetworkIdentity           `json:"networkIdentities"`
	NetworkManagerSettings     []NetworkManagerSetting     `json:"networkManagerSettings"`
	NetworkRoomManagerSettings []NetworkRoomManagerSetting `json:"networkRoomManagerSettings"`
	// SceneIDs maps known scene paths to the last object id discovered in
	// them. Unresolved scenes keep a null value.
	SceneIDs OrderedMap[string, *string] `json:"sceneIds"`
	SyncVars []SyncVar                   `json:"syncVars"`
	Assets   OrderedMap[uint32, string]  `json:"assets"`
}

// Method is a remote method as published to the backend.
type Method struct {
	HashCode          uint16                      `json:"hashCode"`
	SubClass          string                      `json:"subClass"`
	Name              string                      `json:"name"`
	RequiresAuthority bool                        `json:"requiresAuthority"`
	Type              wire.MethodKind             `json:"type"`
	Parameters        OrderedMap[string, string]  `json:"parameters"`
	RPCList           []string                    `json:"rpcList"`
	VarList           OrderedMap[uint8, []string] `json:"varList"`
}

// SyncVar is a synchronized field annotated with its encoded initial value.
type SyncVar struct {
	FullName     string   `json:"fullname"`
	SubClass     string   `json:"subClass"`
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	InitialValue ByteList `json:"initialValue"`
	DirtyBit     int32    `json:"dirtyBit"`
}

// NetworkIdentity describes one replicated object, either a prefab or a
// scene-placed instance.
type NetworkIdentity struct {
	AssetID uint32 `json:"assetId"`
	// SceneID is the decimal scene object id, null for prefabs.
	SceneID    *string                      `json:"sceneId"`
	Components OrderedMap[uint8, Component] `json:"networkBehaviourComponents"`

	SceneObjectID uint64 `json:"-"`
}

// FragmentKey is the id the identity's fragment file is keyed by: the scene
// object id when placed in a scene, the asset id otherwise.
func (n *NetworkIdentity) FragmentKey() uint64 {
	if n.SceneObjectID != 0 {
		return n.SceneObjectID
	}
	return uint64(n.AssetID)
}

// ComponentKind tags which setting blocks a Component carries.
type ComponentKind string

const (
	KindOther               ComponentKind = "other"
	KindTransformReliable   ComponentKind = "transformReliable"
	KindTransformUnreliable ComponentKind = "transformUnreliable"
	KindTransformBase       ComponentKind = "transformBase"
	KindAnimator            ComponentKind = "animator"
	KindRoomPlayer          ComponentKind = "roomPlayer"
)

// Component describes one replicated behaviour on an object.
type Component struct {
	ComponentIndex uint8         `json:"componentIndex"`
	ComponentType  string        `json:"componentType"`
	Kind           ComponentKind `json:"kind"`

	NetworkBehaviourSetting           *NetworkBehaviourSetting           `json:"networkBehaviourSetting,omitempty"`
	NetworkTransformBaseSetting       *NetworkTransformBaseSetting       `json:"networkTransformBaseSetting,omitempty"`
	NetworkTransformReliableSetting   *NetworkTransformReliableSetting   `json:"networkTransformReliableSetting,omitempty"`
	NetworkTransformUnreliableSetting *NetworkTransformUnreliableSetting `json:"networkTransformUnreliableSetting,omitempty"`
	NetworkAnimatorSetting            *NetworkAnimatorSetting            `json:"networkAnimatorSetting,omitempty"`

	// SyncVars lists the sync fields declared by ComponentType, for kind other.
	SyncVars []SyncVar `json:"syncVars,omitempty"`
}

type NetworkBehaviourSetting struct {
	SyncDirection int `json:"syncDirection"`
}

type NetworkTransformBaseSetting struct {
	SyncPosition           bool `json:"syncPosition"`
	SyncRotation           bool `json:"syncRotation"`
	SyncScale              bool `json:"syncScale"`
	OnlySyncOnChange       bool `json:"onlySyncOnChange"`
	CompressRotation       bool `json:"compressRotation"`
	InterpolatePosition    bool `json:"interpolatePosition"`
	InterpolateRotation    bool `json:"interpolateRotation"`
	InterpolateScale       bool `json:"interpolateScale"`
	CoordinateSpace        int  `json:"coordinateSpace"`
	SendIntervalMultiplier uint `json:"sendIntervalMultiplier"`
	TimelineOffset         bool `json:"timelineOffset"`
}

type NetworkTransformReliableSetting struct {
	OnlySyncOnChangeCorrectionMultiplier float32 `json:"onlySyncOnChangeCorrectionMultiplier"`
	RotationSensitivity                  float32 `json:"rotationSensitivity"`
	PositionPrecision                    float32 `json:"positionPrecision"`
	ScalePrecision                       float32 `json:"scalePrecision"`
}

type NetworkTransformUnreliableSetting struct {
	BufferResetMultiplier float32 `json:"bufferResetMultiplier"`
	PositionSensitivity   float32 `json:"positionSensitivity"`
	RotationSensitivity   float32 `json:"rotationSensitivity"`
	ScaleSensitivity      float32 `json:"scaleSensitivity"`
}

type SnapshotInterpolationSetting struct {
	BufferTimeMultiplier       float64 `json:"bufferTimeMultiplier"`
	BufferLimit                int     `json:"bufferLimit"`
	CatchupNegativeThreshold   float32 `json:"catchupNegativeThreshold"`
	CatchupPositiveThreshold   float32 `json:"catchupPositiveThreshold"`
	CatchupSpeed               float64 `json:"catchupSpeed"`
	SlowdownSpeed              float64 `json:"slowdownSpeed"`
	DriftEmaDuration           int     `json:"driftEmaDuration"`
	DynamicAdjustment          bool    `json:"dynamicAdjustment"`
	DynamicAdjustmentTolerance float32 `json:"dynamicAdjustmentTolerance"`
	DeliveryTimeEmaDuration    int     `json:"deliveryTimeEmaDuration"`
}

type NetworkManagerSetting struct {
	DontDestroyOnLoad             bool                         `json:"dontDestroyOnLoad"`
	RunInBackground               bool                         `json:"runInBackground"`
	HeadlessStartMode             string                       `json:"headlessStartMode"`
	EditorAutoStart               bool                         `json:"editorAutoStart"`
	SendRate                      int                          `json:"sendRate"`
	OfflineScene                  string                       `json:"offlineScene"`
	OnlineScene                   string                       `json:"onlineScene"`
	OfflineSceneLoadDelay         float32                      `json:"offlineSceneLoadDelay"`
	Transport                     string                       `json:"transport"`
	NetworkAddress                string                       `json:"networkAddress"`
	MaxConnections                int                          `json:"maxConnections"`
	DisconnectInactiveConnections bool                         `json:"disconnectInactiveConnections"`
	DisconnectInactiveTimeout     float32                      `json:"disconnectInactiveTimeout"`
	Authenticator                 string                       `json:"authenticator"`
	PlayerPrefab                  string                       `json:"playerPrefab"`
	AutoCreatePlayer              bool                         `json:"autoCreatePlayer"`
	PlayerSpawnMethod             string                       `json:"playerSpawnMethod"`
	SpawnPrefabs                  []string                     `json:"spawnPrefabs"`
	ExceptionsDisconnect          bool                         `json:"exceptionsDisconnect"`
	SnapshotSettings              SnapshotInterpolationSetting `json:"snapshotSettings"`
	EvaluationMethod              string                       `json:"evaluationMethod"`
	EvaluationInterval            float32                      `json:"evaluationInterval"`
	TimeInterpolationGui          bool                         `json:"timeInterpolationGui"`
}

type NetworkRoomManagerSetting struct {
	ShowRoomGUI           bool                  `json:"showRoomGUI"`
	MinPlayers            int                   `json:"minPlayers"`
	RoomPlayerPrefab      string                `json:"roomPlayerPrefab"`
	NetworkManagerSetting NetworkManagerSetting `json:"networkManagerSetting"`
}

// AnimatorParameterType matches the engine's parameter type numbering.
type AnimatorParameterType int

const (
	AnimatorFloat   AnimatorParameterType = 1
	AnimatorInt     AnimatorParameterType = 3
	AnimatorBool    AnimatorParameterType = 4
	AnimatorTrigger AnimatorParameterType = 9
)

type NetworkAnimatorStateSetting struct {
	FullPathHash   int32   `json:"fullPathHash"`
	NormalizedTime float32 `json:"normalizedTime"`
	LayerWeight    float32 `json:"layerWeight"`
}

type NetworkAnimatorParameterSetting struct {
	Index int                   `json:"index"`
	Type  AnimatorParameterType `json:"type"`
	Value ByteList              `json:"value"`
}

type NetworkAnimatorData struct {
	Layers     []NetworkAnimatorStateSetting     `json:"layers"`
	Parameters []NetworkAnimatorParameterSetting `json:"parameters"`
}

// NetworkAnimatorSetting is the animator snapshot captured when a replicated
// object wakes up.
type NetworkAnimatorSetting struct {
	ClientAuthority bool                `json:"clientAuthority"`
	Animator        NetworkAnimatorData `json:"animator"`
	AnimatorSpeed   float32             `json:"animatorSpeed"`
	PreviousSpeed   float32             `json:"previousSpeed"`
}
