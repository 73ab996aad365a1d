package scenegraph

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	ErrUnsupportedType = errors.New("unsupported field type")
	ErrInvalidValue    = errors.New("invalid field value")
)

// MaxStringLength is the largest UTF-8 string, in bytes, the replication
// writer accepts.
const MaxStringLength = math.MaxUint16 - 1

// Vector layouts: component names in write order.
var vectorLayouts = map[string][]string{
	"Vector2":    {"x", "y"},
	"Vector3":    {"x", "y", "z"},
	"Vector4":    {"x", "y", "z", "w"},
	"Quaternion": {"x", "y", "z", "w"},
	"Color":      {"r", "g", "b", "a"},
	"Rect":       {"x", "y", "width", "height"},
	"Vector2Int": {"x", "y"},
	"Vector3Int": {"x", "y", "z"},
	"Color32":    {"r", "g", "b", "a"},
}

// canonicalType maps C# keyword aliases and System/UnityEngine qualified
// names onto one spelling.
func canonicalType(typ string) string {
	typ = strings.TrimSpace(typ)
	typ = strings.TrimPrefix(typ, "System.")
	typ = strings.TrimPrefix(typ, "UnityEngine.")
	switch typ {
	case "byte":
		return "Byte"
	case "sbyte":
		return "SByte"
	case "bool":
		return "Boolean"
	case "short":
		return "Int16"
	case "ushort":
		return "UInt16"
	case "int":
		return "Int32"
	case "uint":
		return "UInt32"
	case "long":
		return "Int64"
	case "ulong":
		return "UInt64"
	case "float":
		return "Single"
	case "double":
		return "Double"
	case "char":
		return "Char"
	case "string":
		return "String"
	}
	return typ
}

// EncodeValue writes v the way the replication framework's network writer
// serializes a field of type typ: fixed-width little-endian numbers, one
// byte per bool, strings as a uint16 of byte length plus one followed by
// UTF-8 (zero for null), and vectors as consecutive components.
func EncodeValue(typ string, v any) ([]byte, error) {
	var out []byte
	switch t := canonicalType(typ); t {
	case "Byte":
		n, err := integer(v, 0, math.MaxUint8)
		if err != nil {
			return nil, err
		}
		return append(out, byte(n)), nil
	case "SByte":
		n, err := integer(v, math.MinInt8, math.MaxInt8)
		if err != nil {
			return nil, err
		}
		return append(out, byte(int8(n))), nil
	case "Boolean":
		b, err := boolean(v)
		if err != nil {
			return nil, err
		}
		if b {
			return append(out, 1), nil
		}
		return append(out, 0), nil
	case "Int16":
		n, err := integer(v, math.MinInt16, math.MaxInt16)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint16(out, uint16(int16(n))), nil
	case "UInt16", "Char":
		if s, ok := v.(string); ok && t == "Char" {
			r, size := utf8.DecodeRuneInString(s)
			if size != len(s) || r > math.MaxUint16 {
				return nil, fmt.Errorf("%w: char %q", ErrInvalidValue, s)
			}
			return binary.LittleEndian.AppendUint16(out, uint16(r)), nil
		}
		n, err := integer(v, 0, math.MaxUint16)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint16(out, uint16(n)), nil
	case "Int32":
		n, err := integer(v, math.MinInt32, math.MaxInt32)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint32(out, uint32(int32(n))), nil
	case "UInt32":
		n, err := integer(v, 0, math.MaxUint32)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint32(out, uint32(n)), nil
	case "Int64":
		n, err := integer(v, math.MinInt64, math.MaxInt64)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint64(out, uint64(n)), nil
	case "UInt64":
		n, err := unsigned64(v)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint64(out, n), nil
	case "Single":
		f, err := float(v)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint32(out, math.Float32bits(float32(f))), nil
	case "Double":
		f, err := float(v)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint64(out, math.Float64bits(f)), nil
	case "String":
		if v == nil {
			return binary.LittleEndian.AppendUint16(out, 0), nil
		}
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}
		if len(s) > MaxStringLength-1 {
			return nil, fmt.Errorf("%w: string of %d bytes", ErrInvalidValue, len(s))
		}
		out = binary.LittleEndian.AppendUint16(out, uint16(len(s)+1))
		return append(out, s...), nil
	default:
		layout, ok := vectorLayouts[t]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, typ)
		}
		return encodeVector(t, layout, v)
	}
}

func encodeVector(typ string, layout []string, v any) ([]byte, error) {
	parts, err := vectorParts(layout, v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", typ, err)
	}
	var out []byte
	for _, p := range parts {
		switch typ {
		case "Vector2Int", "Vector3Int":
			n, err := integer(p, math.MinInt32, math.MaxInt32)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", typ, err)
			}
			out = binary.LittleEndian.AppendUint32(out, uint32(int32(n)))
		case "Color32":
			n, err := integer(p, 0, math.MaxUint8)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", typ, err)
			}
			out = append(out, byte(n))
		default:
			f, err := float(p)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", typ, err)
			}
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(float32(f)))
		}
	}
	return out, nil
}

// vectorParts accepts either a sequence in write order or a mapping keyed by
// component name.
func vectorParts(layout []string, v any) ([]any, error) {
	switch t := v.(type) {
	case []any:
		if len(t) != len(layout) {
			return nil, fmt.Errorf("%w: want %d components, got %d", ErrInvalidValue, len(layout), len(t))
		}
		return t, nil
	case map[string]any:
		out := make([]any, len(layout))
		for i, name := range layout {
			val, ok := t[name]
			if !ok {
				return nil, fmt.Errorf("%w: missing component %q", ErrInvalidValue, name)
			}
			out[i] = val
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %T is not a vector", ErrInvalidValue, v)
	}
}

func integer(v any, lo, hi int64) (int64, error) {
	var n int64
	switch t := v.(type) {
	case int:
		n = int64(t)
	case int32:
		n = int64(t)
	case int64:
		n = t
	case uint64:
		if t > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d out of range", ErrInvalidValue, t)
		}
		n = int64(t)
	case float64:
		if t != math.Trunc(t) || t < math.MinInt64 || t > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %v is not an integer", ErrInvalidValue, t)
		}
		n = int64(t)
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrInvalidValue, t)
		}
		n = i
	case string:
		i, err := strconv.ParseInt(t, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidValue, t)
		}
		n = i
	default:
		return 0, fmt.Errorf("%w: %T is not an integer", ErrInvalidValue, v)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%w: %d out of range", ErrInvalidValue, n)
	}
	return n, nil
}

func unsigned64(v any) (uint64, error) {
	switch t := v.(type) {
	case uint64:
		return t, nil
	case string:
		n, err := strconv.ParseUint(t, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidValue, t)
		}
		return n, nil
	case json.Number:
		n, err := strconv.ParseUint(t.String(), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrInvalidValue, t)
		}
		return n, nil
	}
	n, err := integer(v, 0, math.MaxInt64)
	return uint64(n), err
}

func float(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrInvalidValue, t)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidValue, t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %T is not a number", ErrInvalidValue, v)
	}
}

func boolean(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(t)
		if err != nil {
			return false, fmt.Errorf("%w: %q", ErrInvalidValue, t)
		}
		return b, nil
	default:
		n, err := integer(v, 0, 1)
		if err != nil {
			return false, err
		}
		return n == 1, nil
	}
}
