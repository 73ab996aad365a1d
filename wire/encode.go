package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var (
	ErrStringTooLong           = errors.New("string exceeds 65535 bytes")
	ErrNonASCII                = errors.New("string contains non-ASCII characters")
	ErrCountOverflow           = errors.New("element count exceeds 65535")
	ErrCommandDataOnNonCommand = errors.New("call or field-write data on a non-command method")
)

// Encode serializes f: the sync-field section followed by the method section.
func Encode(f Facts) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf).Encode(f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encoder writes artifact sections to an underlying writer. The first error
// sticks; later writes are no-ops.
type Encoder struct {
	w   io.Writer
	err error
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes both sections in tag order.
func (e *Encoder) Encode(f Facts) error {
	if err := e.WriteSyncFields(f.SyncFields); err != nil {
		return err
	}
	return e.WriteMethods(f.Methods)
}

// WriteSyncFields writes a tag-1 section.
func (e *Encoder) WriteSyncFields(fields []SyncField) error {
	e.u16(TagSyncFields)
	e.count(len(fields), "sync fields")
	for i, sf := range fields {
		e.str(sf.FullName)
		e.str(sf.DeclaringClass)
		e.str(sf.FieldName)
		e.str(sf.FieldType)
		e.i32(sf.DirtyBit)
		if e.err != nil {
			return fmt.Errorf("encode sync field %d (%s): %w", i, sf.FullName, e.err)
		}
	}
	return e.err
}

// WriteMethods writes a tag-2 section.
func (e *Encoder) WriteMethods(methods []RemoteMethod) error {
	e.u16(TagMethods)
	e.count(len(methods), "methods")
	for i := range methods {
		e.method(&methods[i])
		if e.err != nil {
			return fmt.Errorf("encode method %d (%s): %w", i, methods[i].Name, e.err)
		}
	}
	return e.err
}

func (e *Encoder) method(m *RemoteMethod) {
	if m.Kind != Command && (len(m.CalledMethods) > 0 || len(m.FieldWrites) > 0) {
		e.fail(ErrCommandDataOnNonCommand)
		return
	}

	e.str(m.DeclaringClass)
	e.str(m.Name)
	e.boolean(m.RequiresAuthority)
	e.u8(uint8(m.Kind))

	e.count(len(m.Parameters), "parameters")
	for _, p := range m.Parameters {
		e.str(p.Name)
		e.str(p.Type)
	}

	if m.Kind != Command {
		return
	}

	e.count(len(m.CalledMethods), "called methods")
	for _, name := range m.CalledMethods {
		e.str(name)
	}

	e.count(len(m.FieldWrites), "field-write groups")
	for _, fw := range m.FieldWrites {
		e.u8(fw.Index)
		e.count(len(fw.Fields), "field writes")
		for _, name := range fw.Fields {
			e.str(name)
		}
	}
}

func (e *Encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *Encoder) write(b []byte) {
	if e.err != nil {
		return
	}
	if _, err := e.w.Write(b); err != nil {
		e.err = err
	}
}

func (e *Encoder) u8(v uint8) {
	e.write([]byte{v})
}

func (e *Encoder) boolean(v bool) {
	if v {
		e.u8(1)
		return
	}
	e.u8(0)
}

func (e *Encoder) u16(v uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	e.write(buf[:])
}

func (e *Encoder) i32(v int32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	e.write(buf[:])
}

func (e *Encoder) count(n int, what string) {
	if n > math.MaxUint16 {
		e.fail(fmt.Errorf("%s: %d: %w", what, n, ErrCountOverflow))
		return
	}
	e.u16(uint16(n))
}

func (e *Encoder) str(s string) {
	if e.err != nil {
		return
	}
	if len(s) > math.MaxUint16 {
		e.fail(fmt.Errorf("%d bytes: %w", len(s), ErrStringTooLong))
		return
	}
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			e.fail(fmt.Errorf("%q: %w", s, ErrNonASCII))
			return
		}
	}
	e.u16(uint16(len(s)))
	e.write([]byte(s))
}
