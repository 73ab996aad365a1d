package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Decode parses an artifact. An unknown tag ends decoding without error; a
// stream that ends inside a section fails with io.ErrUnexpectedEOF and no
// partial result is returned.
//
// A repeated sync-field section replaces the previous one, repeated method
// sections accumulate.
func Decode(data []byte) (Facts, error) {
	r := &reader{data: data}
	var f Facts

	for r.remaining() > 0 {
		tag, err := r.u16()
		if err != nil {
			return Facts{}, fmt.Errorf("read section tag at offset %d: %w", r.off, err)
		}
		switch tag {
		case TagSyncFields:
			fields, err := r.syncFields()
			if err != nil {
				return Facts{}, fmt.Errorf("read sync field section: %w", err)
			}
			f.SyncFields = fields
		case TagMethods:
			methods, err := r.methods()
			if err != nil {
				return Facts{}, fmt.Errorf("read method section: %w", err)
			}
			f.Methods = append(f.Methods, methods...)
		default:
			return f, nil
		}
	}
	return f, nil
}

type reader struct {
	data []byte
	off  int
}

func (r *reader) remaining() int {
	return len(r.data) - r.off
}

func (r *reader) take(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) u8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) i32() (int32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (r *reader) str() (string, error) {
	n, err := r.u16()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) strs(n uint16) ([]string, error) {
	if n == 0 {
		return nil, nil
	}
	out := make([]string, 0, n)
	for range n {
		s, err := r.str()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *reader) syncFields() ([]SyncField, error) {
	n, err := r.u16()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]SyncField, 0, n)
	for i := range n {
		var sf SyncField
		for _, dst := range []*string{&sf.FullName, &sf.DeclaringClass, &sf.FieldName, &sf.FieldType} {
			if *dst, err = r.str(); err != nil {
				return nil, fmt.Errorf("sync field %d: %w", i, err)
			}
		}
		if sf.DirtyBit, err = r.i32(); err != nil {
			return nil, fmt.Errorf("sync field %d: %w", i, err)
		}
		out = append(out, sf)
	}
	return out, nil
}

func (r *reader) methods() ([]RemoteMethod, error) {
	n, err := r.u16()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]RemoteMethod, 0, n)
	for i := range n {
		m, err := r.method()
		if err != nil {
			return nil, fmt.Errorf("method %d: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *reader) method() (RemoteMethod, error) {
	var (
		m   RemoteMethod
		err error
	)
	if m.DeclaringClass, err = r.str(); err != nil {
		return m, err
	}
	if m.Name, err = r.str(); err != nil {
		return m, err
	}
	auth, err := r.u8()
	if err != nil {
		return m, err
	}
	m.RequiresAuthority = auth != 0
	kind, err := r.u8()
	if err != nil {
		return m, err
	}
	m.Kind = MethodKind(kind)

	params, err := r.u16()
	if err != nil {
		return m, err
	}
	for range params {
		var p Parameter
		if p.Name, err = r.str(); err != nil {
			return m, err
		}
		if p.Type, err = r.str(); err != nil {
			return m, err
		}
		m.Parameters = append(m.Parameters, p)
	}

	if m.Kind != Command {
		return m, nil
	}

	calls, err := r.u16()
	if err != nil {
		return m, err
	}
	if m.CalledMethods, err = r.strs(calls); err != nil {
		return m, err
	}

	groups, err := r.u16()
	if err != nil {
		return m, err
	}
	for range groups {
		var fw FieldWrites
		if fw.Index, err = r.u8(); err != nil {
			return m, err
		}
		cnt, err := r.u16()
		if err != nil {
			return m, err
		}
		if fw.Fields, err = r.strs(cnt); err != nil {
			return m, err
		}
		m.FieldWrites = append(m.FieldWrites, fw)
	}
	return m, nil
}
