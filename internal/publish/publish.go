// Package publish ships a written export document to where the backend picks
// it up: a local directory or an S3-compatible bucket.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/Alia5/syncbackend/internal/exporter"
)

// User metadata attached to every published object.
const (
	MetaArtifactDigest = "artifact-digest"
	MetaDocumentDigest = "document-digest"
)

const (
	contentType = "application/json"
	zstdExt     = ".zst"
)

// Object is a publishable rendition of one export.
type Object struct {
	Key             string
	Body            []byte
	ContentType     string
	ContentEncoding string
	Metadata        map[string]string
}

// Publisher stores objects. Publish returns the location written to.
type Publisher interface {
	Publish(ctx context.Context, obj Object) (string, error)
}

// NewObject builds the object for res under prefix, zstd-compressed when
// compress is set.
func NewObject(prefix string, res *exporter.Result, compress bool) (Object, error) {
	obj := Object{
		Key:         Key(prefix, compress),
		Body:        res.Data,
		ContentType: contentType,
		Metadata: map[string]string{
			MetaArtifactDigest: res.ArtifactDigest,
			MetaDocumentDigest: res.Digest,
		},
	}
	if compress {
		body, err := Compress(res.Data)
		if err != nil {
			return Object{}, err
		}
		obj.Body = body
		obj.ContentEncoding = "zstd"
	}
	return obj, nil
}

// Key is the object key of the document under prefix.
func Key(prefix string, compress bool) string {
	name := exporter.OutputName
	if compress {
		name += zstdExt
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	if _, err := enc.Write(data); err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("compress: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	return buf.Bytes(), nil
}

func Decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()
	out, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	return out, nil
}
