package exporter

import (
	"math"
	"strconv"

	"github.com/Alia5/syncbackend/exporttypes"
	"github.com/Alia5/syncbackend/identity"
	"github.com/Alia5/syncbackend/internal/scenegraph"
)

// identityOf builds the descriptor of an object carrying a replication
// component. scenePath is empty for prefabs. Sync field initial values found
// on the object's behaviours are written into doc.
func (e *Exporter) identityOf(o *scenegraph.Object, scenePath string, doc *exporttypes.Document) (exporttypes.NetworkIdentity, bool) {
	if _, ok := e.walker.ReplicationComponent(o); !ok {
		return exporttypes.NetworkIdentity{}, false
	}

	ni := exporttypes.NetworkIdentity{AssetID: e.assetID(o)}
	if o.SceneID != 0 && scenePath != "" {
		ni.SceneObjectID = identity.SceneObjectID(scenePath, o.SceneID)
		id := strconv.FormatUint(ni.SceneObjectID, 10)
		ni.SceneID = &id
		if err := e.fragments.WriteRaw(sceneIDFile(id), []byte(scenePath)); err != nil {
			e.logger.Warn("Cannot write scene id fragment", "object", o.Name, "error", err)
		}
	}

	behaviours := e.walker.Behaviours(o)
	if len(behaviours) > math.MaxUint8+1 {
		e.logger.Warn("Too many replicated behaviours, extra ones dropped", "object", o.Name, "count", len(behaviours))
		behaviours = behaviours[:math.MaxUint8+1]
	}
	for i, c := range behaviours {
		idx := uint8(i)
		ni.Components.Set(idx, e.component(idx, c, ni.AssetID, doc))
	}
	return ni, true
}

func (e *Exporter) assetID(o *scenegraph.Object) uint32 {
	if o.AssetGUID == "" {
		return 0
	}
	id, err := identity.AssetIDFromString(o.AssetGUID)
	if err != nil {
		e.logger.Warn("Invalid asset guid", "object", o.Name, "guid", o.AssetGUID, "error", err)
		return 0
	}
	return id
}

func (e *Exporter) component(idx uint8, c *scenegraph.Component, assetID uint32, doc *exporttypes.Document) exporttypes.Component {
	out := exporttypes.Component{
		ComponentIndex: idx,
		ComponentType:  c.Type,
		Kind:           exporttypes.KindOther,
	}

	switch c.Kind {
	case scenegraph.KindNetworkTransformBase:
		out.Kind = exporttypes.KindTransformBase
		e.transformBase(c, &out)
		out.SyncVars = e.annotate(c, doc)
	case scenegraph.KindNetworkTransformUnreliable:
		out.Kind = exporttypes.KindTransformUnreliable
		e.transformBase(c, &out)
		out.NetworkTransformUnreliableSetting = &exporttypes.NetworkTransformUnreliableSetting{}
		e.decode(c, out.NetworkTransformUnreliableSetting)
	case scenegraph.KindNetworkTransformReliable:
		out.Kind = exporttypes.KindTransformReliable
		e.transformBase(c, &out)
		out.NetworkTransformReliableSetting = &exporttypes.NetworkTransformReliableSetting{}
		e.decode(c, out.NetworkTransformReliableSetting)
	case scenegraph.KindNetworkAnimator:
		out.Kind = exporttypes.KindAnimator
		var setting exporttypes.NetworkAnimatorSetting
		ok, err := e.fragments.Read(animatorFile(assetID), &setting)
		switch {
		case err != nil:
			e.logger.Warn("Cannot read animator fragment", "component", c.Type, "assetId", assetID, "error", err)
		case ok:
			out.NetworkAnimatorSetting = &setting
		}
	case scenegraph.KindNetworkRoomPlayer:
		out.Kind = exporttypes.KindRoomPlayer
	default:
		out.SyncVars = e.annotate(c, doc)
	}
	return out
}

func (e *Exporter) transformBase(c *scenegraph.Component, out *exporttypes.Component) {
	out.NetworkBehaviourSetting = &exporttypes.NetworkBehaviourSetting{}
	e.decode(c, out.NetworkBehaviourSetting)
	out.NetworkTransformBaseSetting = &exporttypes.NetworkTransformBaseSetting{}
	e.decode(c, out.NetworkTransformBaseSetting)
}

func (e *Exporter) decode(c *scenegraph.Component, v any) {
	if err := c.DecodeSettings(v); err != nil {
		e.logger.Warn("Cannot read component settings", "component", c.Type, "error", err)
	}
}

// annotate records the component's current values for every sync field its
// type declares, both in the document-wide list and on the component.
func (e *Exporter) annotate(c *scenegraph.Component, doc *exporttypes.Document) []exporttypes.SyncVar {
	var out []exporttypes.SyncVar
	for i := range doc.SyncVars {
		sv := &doc.SyncVars[i]
		if sv.SubClass != c.Type {
			continue
		}
		sv.InitialValue = exporttypes.ByteList(e.walker.ReadInitialFieldValue(c, sv.Name))
		out = append(out, *sv)
	}
	return out
}

func (e *Exporter) managerSetting(c *scenegraph.Component) exporttypes.NetworkManagerSetting {
	var s exporttypes.NetworkManagerSetting
	e.decode(c, &s)
	if s.SpawnPrefabs == nil {
		s.SpawnPrefabs = []string{}
	}
	return s
}

func (e *Exporter) roomManagerSetting(c *scenegraph.Component) exporttypes.NetworkRoomManagerSetting {
	var s exporttypes.NetworkRoomManagerSetting
	e.decode(c, &s)
	s.NetworkManagerSetting = e.managerSetting(c)
	return s
}
