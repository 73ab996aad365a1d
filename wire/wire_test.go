package wire_test

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/syncbackend/wire"
)

func healFacts() wire.Facts {
	return wire.Facts{
		SyncFields: []wire.SyncField{
			{FullName: "Foo.hp", DeclaringClass: "Foo", FieldName: "hp", FieldType: "int", DirtyBit: 0},
		},
		Methods: []wire.RemoteMethod{
			{
				DeclaringClass:    "Foo",
				Name:              "CmdHeal",
				RequiresAuthority: true,
				Kind:              wire.Command,
				Parameters:        []wire.Parameter{{Name: "amount", Type: "int"}},
				CalledMethods:     []string{"Foo.ApplyHeal"},
				FieldWrites:       []wire.FieldWrites{{Index: 1, Fields: []string{"Foo.hp"}}},
			},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		facts wire.Facts
	}{
		{name: "empty", facts: wire.Facts{}},
		{name: "heal command", facts: healFacts()},
		{
			name: "mixed kinds",
			facts: wire.Facts{
				SyncFields: []wire.SyncField{
					{FullName: "Base.a", DeclaringClass: "Base", FieldName: "a", FieldType: "System.Int32", DirtyBit: 0},
					{FullName: "Derived.b", DeclaringClass: "Derived", FieldName: "b", FieldType: "System.String", DirtyBit: 1},
				},
				Methods: []wire.RemoteMethod{
					{DeclaringClass: "Derived", Name: "RpcPing", Kind: wire.ClientRpc, RequiresAuthority: true},
					{DeclaringClass: "Derived", Name: "TargetHit", Kind: wire.TargetRpc, Parameters: []wire.Parameter{{Name: "conn", Type: "Mirror.NetworkConnection"}, {Name: "dmg", Type: "System.Single"}}},
					{DeclaringClass: "Derived", Name: "Update", Kind: wire.KindUnset, RequiresAuthority: true},
					{DeclaringClass: "Derived", Name: "CmdEmpty", Kind: wire.Command},
					{
						DeclaringClass: "Derived",
						Name:           "CmdMove",
						Kind:           wire.Command,
						Parameters:     []wire.Parameter{{Name: "x", Type: "int"}, {Name: "y", Type: "int"}},
						FieldWrites: []wire.FieldWrites{
							{Index: 2, Fields: []string{"Derived.y"}},
							{Index: 1, Fields: []string{"Derived.x", "Base.a"}},
						},
					},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := wire.Encode(tt.facts)
			require.NoError(t, err)

			got, err := wire.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tt.facts, got)
		})
	}
}

func TestRoundTripEmptyLists(t *testing.T) {
	facts := wire.Facts{
		SyncFields: []wire.SyncField{},
		Methods: []wire.RemoteMethod{
			{DeclaringClass: "Foo", Name: "RpcNoop", Kind: wire.ClientRpc, Parameters: []wire.Parameter{}},
			{
				DeclaringClass: "Foo",
				Name:           "CmdNoop",
				Kind:           wire.Command,
				Parameters:     []wire.Parameter{},
				CalledMethods:  []string{},
				FieldWrites:    []wire.FieldWrites{{Index: 1, Fields: []string{}}},
			},
		},
	}

	data, err := wire.Encode(facts)
	require.NoError(t, err)
	canonical, err := wire.Encode(facts.Canonical())
	require.NoError(t, err)
	assert.Equal(t, data, canonical, "empty and nil lists encode the same")

	got, err := wire.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, facts.Canonical(), got)
	assert.Nil(t, got.SyncFields)
	assert.Nil(t, got.Methods[1].CalledMethods)
	assert.Nil(t, got.Methods[1].FieldWrites[0].Fields)
	assert.Equal(t, got, got.Canonical())

	require.Len(t, facts.Methods[1].Parameters, 0)
	assert.NotNil(t, facts.Methods[1].Parameters, "Canonical does not modify its receiver")
}

func TestEncodeLayout(t *testing.T) {
	data, err := wire.Encode(wire.Facts{SyncFields: healFacts().SyncFields})
	require.NoError(t, err)

	expected := []byte{
		0x01, 0x00, // tag 1
		0x01, 0x00, // one record
		0x06, 0x00, 'F', 'o', 'o', '.', 'h', 'p',
		0x03, 0x00, 'F', 'o', 'o',
		0x02, 0x00, 'h', 'p',
		0x03, 0x00, 'i', 'n', 't',
		0x00, 0x00, 0x00, 0x00, // dirty bit
		0x02, 0x00, // tag 2
		0x00, 0x00, // no methods
	}
	assert.Equal(t, expected, data)
}

func TestEncodeMethodLayout(t *testing.T) {
	data, err := wire.Encode(wire.Facts{Methods: []wire.RemoteMethod{
		{DeclaringClass: "A", Name: "R", Kind: wire.ClientRpc, RequiresAuthority: true},
	}})
	require.NoError(t, err)

	expected := []byte{
		0x01, 0x00, 0x00, 0x00,
		0x02, 0x00, 0x01, 0x00,
		0x01, 0x00, 'A',
		0x01, 0x00, 'R',
		0x01,       // requires authority
		0x03,       // client rpc
		0x00, 0x00, // no parameters, no command data follows
	}
	assert.Equal(t, expected, data)
}

func TestDecodeUnknownTagStops(t *testing.T) {
	data, err := wire.Encode(healFacts())
	require.NoError(t, err)

	trailing := append(bytes.Clone(data), 0x07, 0x00, 0xde, 0xad, 0xbe, 0xef)
	got, err := wire.Decode(trailing)
	require.NoError(t, err)
	assert.Equal(t, healFacts(), got)
}

func TestDecodeUnknownTagHidesLaterSections(t *testing.T) {
	var buf bytes.Buffer
	enc := wire.NewEncoder(&buf)
	require.NoError(t, enc.WriteSyncFields(healFacts().SyncFields))
	buf.Write([]byte{0x09, 0x00})
	require.NoError(t, enc.WriteMethods(healFacts().Methods))

	got, err := wire.Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, healFacts().SyncFields, got.SyncFields)
	assert.Empty(t, got.Methods)
}

func TestDecodeRepeatedSections(t *testing.T) {
	first := []wire.SyncField{{FullName: "A.x", DeclaringClass: "A", FieldName: "x", FieldType: "int"}}
	second := []wire.SyncField{{FullName: "B.y", DeclaringClass: "B", FieldName: "y", FieldType: "int", DirtyBit: 3}}
	m1 := []wire.RemoteMethod{{DeclaringClass: "A", Name: "RpcA", Kind: wire.ClientRpc}}
	m2 := []wire.RemoteMethod{{DeclaringClass: "B", Name: "RpcB", Kind: wire.ClientRpc}}

	var buf bytes.Buffer
	enc := wire.NewEncoder(&buf)
	require.NoError(t, enc.WriteSyncFields(first))
	require.NoError(t, enc.WriteMethods(m1))
	require.NoError(t, enc.WriteSyncFields(second))
	require.NoError(t, enc.WriteMethods(m2))

	got, err := wire.Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, second, got.SyncFields)
	assert.Equal(t, append(m1, m2...), got.Methods)
}

func TestDecodeTruncated(t *testing.T) {
	data, err := wire.Encode(healFacts())
	require.NoError(t, err)

	// Cutting exactly after the first section leaves a valid stream.
	syncOnly, err := wire.Encode(wire.Facts{SyncFields: healFacts().SyncFields})
	require.NoError(t, err)
	boundary := len(syncOnly) - 4

	for cut := 1; cut < len(data); cut++ {
		if cut == boundary {
			continue
		}
		_, err := wire.Decode(data[:cut])
		require.Errorf(t, err, "cut at %d", cut)
		assert.Truef(t, errors.Is(err, io.ErrUnexpectedEOF), "cut at %d: %v", cut, err)
	}
}

func TestDecodeLoneTrailingByte(t *testing.T) {
	data, err := wire.Encode(healFacts())
	require.NoError(t, err)

	_, err = wire.Decode(append(bytes.Clone(data), 0x01))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestDecodeEmpty(t *testing.T) {
	got, err := wire.Decode(nil)
	require.NoError(t, err)
	assert.Equal(t, wire.Facts{}, got)
}

func TestEncodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		facts wire.Facts
		err   error
	}{
		{
			name:  "non ascii",
			facts: wire.Facts{SyncFields: []wire.SyncField{{FullName: "Foo.hé"}}},
			err:   wire.ErrNonASCII,
		},
		{
			name:  "string too long",
			facts: wire.Facts{Methods: []wire.RemoteMethod{{Name: strings.Repeat("x", 65536)}}},
			err:   wire.ErrStringTooLong,
		},
		{
			name:  "too many records",
			facts: wire.Facts{SyncFields: make([]wire.SyncField, 65536)},
			err:   wire.ErrCountOverflow,
		},
		{
			name:  "command data on rpc",
			facts: wire.Facts{Methods: []wire.RemoteMethod{{Name: "RpcX", Kind: wire.ClientRpc, CalledMethods: []string{"A.B"}}}},
			err:   wire.ErrCommandDataOnNonCommand,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := wire.Encode(tt.facts)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestEncodeMaxLengthString(t *testing.T) {
	name := strings.Repeat("x", 65535)
	facts := wire.Facts{Methods: []wire.RemoteMethod{{DeclaringClass: "A", Name: name, Kind: wire.ClientRpc}}}
	data, err := wire.Encode(facts)
	require.NoError(t, err)

	got, err := wire.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, name, got.Methods[0].Name)
}

func TestBinaryMarshaler(t *testing.T) {
	data, err := healFacts().MarshalBinary()
	require.NoError(t, err)

	var f wire.Facts
	require.NoError(t, f.UnmarshalBinary(data))
	assert.Equal(t, healFacts(), f)
}

func TestArtifactFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", wire.ArtifactName)

	written, err := wire.WriteArtifact(path, healFacts())
	require.NoError(t, err)

	got, raw, err := wire.ReadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, healFacts(), got)
	assert.Equal(t, written, raw)
	assert.Equal(t, wire.Digest(written), wire.Digest(raw))
	assert.Len(t, wire.Digest(raw), 64)

	_, err = wire.WriteArtifact(path, wire.Facts{})
	require.NoError(t, err)
	got, _, err = wire.ReadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, wire.Facts{}, got)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "command", wire.Command.String())
	assert.Equal(t, "kind(9)", wire.MethodKind(9).String())
}
