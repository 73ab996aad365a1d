// Package wire implements the binary artifact exchanged between the static
// analysis pass and the export pass.
//
// The stream is a sequence of tagged sections. Every integer is fixed-width
// little-endian:
//
//	section  := tag:u16 body
//	tag 1    := count:u16 SyncField*count
//	tag 2    := count:u16 RemoteMethod*count
//	string   := len:u16 ascii*len
//
// Decoding stops at the first unknown tag, which lets newer producers append
// sections that older consumers ignore.
package wire

import "fmt"

// Section tags.
const (
	TagSyncFields uint16 = 1
	TagMethods    uint16 = 2
)

// MaxSyncFields is the number of dirty bits available to one class hierarchy.
const MaxSyncFields = 64

// MethodKind identifies how a remote method is marshaled.
type MethodKind uint8

const (
	// KindUnset is carried by methods without a remote-call marker.
	KindUnset MethodKind = 0
	// Command flows from a client to the authority.
	Command MethodKind = 1
	// TargetRpc flows from the authority to one client.
	TargetRpc MethodKind = 2
	// ClientRpc flows from the authority to all clients.
	ClientRpc MethodKind = 3
)

func (k MethodKind) String() string {
	switch k {
	case KindUnset:
		return "unset"
	case Command:
		return "command"
	case TargetRpc:
		return "targetRpc"
	case ClientRpc:
		return "clientRpc"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// SyncField is one synchronized field discovered on a replicated class.
type SyncField struct {
	FullName       string `json:"fullName" yaml:"fullName"`
	DeclaringClass string `json:"declaringClass" yaml:"declaringClass"`
	FieldName      string `json:"fieldName" yaml:"fieldName"`
	FieldType      string `json:"fieldType" yaml:"fieldType"`
	DirtyBit       int32  `json:"dirtyBit" yaml:"dirtyBit"`
}

// Parameter is one entry of a method's ordered parameter list.
type Parameter struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// FieldWrites groups the fields a Command assigns from one argument slot.
// Slot 0 is the receiver, slot 1 the first declared parameter.
type FieldWrites struct {
	Index  uint8    `json:"index" yaml:"index"`
	Fields []string `json:"fields" yaml:"fields"`
}

// RemoteMethod is one method record. CalledMethods and FieldWrites are only
// carried by Command methods.
type RemoteMethod struct {
	DeclaringClass    string        `json:"declaringClass" yaml:"declaringClass"`
	Name              string        `json:"name" yaml:"name"`
	RequiresAuthority bool          `json:"requiresAuthority" yaml:"requiresAuthority"`
	Kind              MethodKind    `json:"kind" yaml:"kind"`
	Parameters        []Parameter   `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	CalledMethods     []string      `json:"calledMethods,omitempty" yaml:"calledMethods,omitempty"`
	FieldWrites       []FieldWrites `json:"fieldWrites,omitempty" yaml:"fieldWrites,omitempty"`
}

// Facts is the complete content of an artifact.
//
// Empty lists are canonically nil: the format cannot tell an empty list from
// an absent one, so Decode never returns empty non-nil slices. Compare
// decoded facts against Canonical() of the encoded value.
type Facts struct {
	SyncFields []SyncField    `json:"syncFields" yaml:"syncFields"`
	Methods    []RemoteMethod `json:"methods" yaml:"methods"`
}

// Canonical returns a copy of f with every empty list set to nil.
func (f Facts) Canonical() Facts {
	out := Facts{SyncFields: nilIfEmpty(f.SyncFields)}
	if len(f.Methods) > 0 {
		out.Methods = make([]RemoteMethod, len(f.Methods))
		for i, m := range f.Methods {
			m.Parameters = nilIfEmpty(m.Parameters)
			m.CalledMethods = nilIfEmpty(m.CalledMethods)
			if len(m.FieldWrites) == 0 {
				m.FieldWrites = nil
			} else {
				fw := make([]FieldWrites, len(m.FieldWrites))
				for j, w := range m.FieldWrites {
					w.Fields = nilIfEmpty(w.Fields)
					fw[j] = w
				}
				m.FieldWrites = fw
			}
			out.Methods[i] = m
		}
	}
	return out
}

func nilIfEmpty[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return s
}

// MarshalBinary encodes f in the artifact format.
func (f Facts) MarshalBinary() ([]byte, error) {
	return Encode(f)
}

// UnmarshalBinary replaces f with the decoded content of data.
func (f *Facts) UnmarshalBinary(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*f = decoded
	return nil
}
