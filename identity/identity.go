// Package identity computes the deterministic identifiers used to key
// replicated objects: 64-bit scene object ids, 32-bit asset ids derived from
// content GUIDs, and the 16-bit method hash carried in exported method lists.
package identity

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/google/uuid"
)

const (
	fnvOffset uint32 = 0x811c9dc5
	fnvPrime  uint32 = 0x01000193
)

// StableHash is the replication framework's process-independent string hash:
// FNV-1a over the UTF-16 code units of s, each truncated to its low byte.
func StableHash(s string) uint32 {
	h := fnvOffset
	for _, cu := range utf16.Encode([]rune(s)) {
		h ^= uint32(byte(cu))
		h *= fnvPrime
	}
	return h
}

// SceneObjectID combines the hash of the lowercased scene path (upper 32 bits)
// with the object's placement id within that scene (lower 32 bits).
func SceneObjectID(scenePath string, placementID uint64) uint64 {
	pathHash := uint64(StableHash(strings.ToLower(scenePath)))
	return pathHash<<32 | placementID&0xFFFFFFFF
}

// AssetID folds a 128-bit content GUID into 32 bits the same way the engine's
// editor runtime does: a ^ (b<<16 | c) ^ (byte10<<24 | byte15), where a, b
// and c are the first three groups of the textual form.
func AssetID(guid uuid.UUID) uint32 {
	a := binary.BigEndian.Uint32(guid[0:4])
	b := uint32(binary.BigEndian.Uint16(guid[4:6]))
	c := uint32(binary.BigEndian.Uint16(guid[6:8]))
	return a ^ (b<<16 | c) ^ (uint32(guid[10])<<24 | uint32(guid[15]))
}

// AssetIDFromString parses a GUID in 32-hex or dashed form and returns its
// asset id.
func AssetIDFromString(s string) (uint32, error) {
	guid, err := ParseGUID(s)
	if err != nil {
		return 0, err
	}
	return AssetID(guid), nil
}

// ParseGUID accepts the asset database's 32-hex form as well as the dashed,
// braced and urn forms.
func ParseGUID(s string) (uuid.UUID, error) {
	guid, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse guid %q: %w", s, err)
	}
	return guid, nil
}

// MethodHash is the 16-bit method hash published next to each remote method.
func MethodHash(name string) uint16 {
	return uint16(StableHash(name) & 0xFFFF)
}
