package exporter

import (
	"github.com/Alia5/syncbackend/exporttypes"
	"github.com/Alia5/syncbackend/identity"
	"github.com/Alia5/syncbackend/wire"
)

// newDocument seeds a document with the analysis facts of the artifact.
func newDocument(f wire.Facts) exporttypes.Document {
	doc := exporttypes.Document{
		Methods:                    make([]exporttypes.Method, 0, len(f.Methods)),
		NetworkIdentities:          []exporttypes.NetworkIdentity{},
		NetworkManagerSettings:     []exporttypes.NetworkManagerSetting{},
		NetworkRoomManagerSettings: []exporttypes.NetworkRoomManagerSetting{},
		SyncVars:                   make([]exporttypes.SyncVar, 0, len(f.SyncFields)),
	}
	for _, m := range f.Methods {
		doc.Methods = append(doc.Methods, method(m))
	}
	for _, sf := range f.SyncFields {
		doc.SyncVars = append(doc.SyncVars, exporttypes.SyncVar{
			FullName:     sf.FullName,
			SubClass:     sf.DeclaringClass,
			Name:         sf.FieldName,
			Type:         sf.FieldType,
			InitialValue: exporttypes.ByteList{},
			DirtyBit:     sf.DirtyBit,
		})
	}
	return doc
}

func method(m wire.RemoteMethod) exporttypes.Method {
	out := exporttypes.Method{
		HashCode:          identity.MethodHash(m.Name),
		SubClass:          m.DeclaringClass,
		Name:              m.Name,
		RequiresAuthority: m.RequiresAuthority,
		Type:              m.Kind,
		RPCList:           append([]string{}, m.CalledMethods...),
	}
	for _, p := range m.Parameters {
		out.Parameters.Set(p.Name, p.Type)
	}
	for _, fw := range m.FieldWrites {
		prev, _ := out.VarList.Get(fw.Index)
		out.VarList.Set(fw.Index, append(prev, fw.Fields...))
	}
	return out
}

// clone copies the parts of doc a refresh modifies, so the one-time base
// survives every run unchanged.
func clone(doc exporttypes.Document) exporttypes.Document {
	out := doc
	out.NetworkIdentities = append([]exporttypes.NetworkIdentity{}, doc.NetworkIdentities...)
	out.NetworkManagerSettings = append([]exporttypes.NetworkManagerSetting{}, doc.NetworkManagerSettings...)
	out.NetworkRoomManagerSettings = append([]exporttypes.NetworkRoomManagerSetting{}, doc.NetworkRoomManagerSettings...)
	out.SyncVars = append([]exporttypes.SyncVar{}, doc.SyncVars...)
	out.SceneIDs = doc.SceneIDs.Clone()
	return out
}
