package log

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"
)

// RawLogger dumps artifact bytes as they cross the disk boundary.
type RawLogger interface {
	Log(in bool, name string, data []byte)
}

// rawLogger implements RawLogger with thread-safe log.
type rawLogger struct {
	w  io.Writer
	mu sync.Mutex
}

// NewRaw creates a new RawLogger. If writer is nil, returns a no-op logger.
func NewRaw(w io.Writer) RawLogger {
	return &rawLogger{w: w}
}

// Log writes a header line followed by a 16-bytes-per-row hex dump.
// in=true means the bytes were read from disk, in=false means written.
func (r *rawLogger) Log(in bool, name string, data []byte) {
	if r.w == nil {
		return
	}

	dir := "write"
	if in {
		dir = "read"
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "%s %s %s: %d bytes\n",
		time.Now().Format("2006/01/02 15:04:05"),
		dir,
		name,
		len(data))

	const hexdigits = "0123456789abcdef"
	for row := 0; row < len(data); row += 16 {
		end := min(row+16, len(data))
		fmt.Fprintf(&out, "  %08x ", row)
		for i, b := range data[row:end] {
			if i == 8 {
				out.WriteByte(' ')
			}
			out.WriteByte(' ')
			out.WriteByte(hexdigits[b>>4])
			out.WriteByte(hexdigits[b&0x0f])
		}
		out.WriteByte('\n')
	}

	r.mu.Lock()
	_, _ = r.w.Write(out.Bytes())
	r.mu.Unlock()
}
