package publish

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/syncbackend/internal/exporter"
)

func testResult() *exporter.Result {
	data := []byte(`{"methods":[],"networkIdentities":[]}`)
	return &exporter.Result{
		Data:           data,
		Digest:         "doc-digest",
		ArtifactDigest: "artifact-digest",
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		prefix   string
		compress bool
		want     string
	}{
		{"", false, "tobackend.json"},
		{"", true, "tobackend.json.zst"},
		{"builds/42", false, "builds/42/tobackend.json"},
		{"/builds/42/ ", true, "builds/42/tobackend.json.zst"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Key(tt.prefix, tt.compress), "prefix %q", tt.prefix)
	}
}

func TestNewObject(t *testing.T) {
	res := testResult()

	plain, err := NewObject("p", res, false)
	require.NoError(t, err)
	assert.Equal(t, res.Data, plain.Body)
	assert.Empty(t, plain.ContentEncoding)
	assert.Equal(t, map[string]string{
		MetaArtifactDigest: "artifact-digest",
		MetaDocumentDigest: "doc-digest",
	}, plain.Metadata)

	packed, err := NewObject("p", res, true)
	require.NoError(t, err)
	assert.Equal(t, "p/tobackend.json.zst", packed.Key)
	assert.Equal(t, "zstd", packed.ContentEncoding)
	assert.NotEqual(t, res.Data, packed.Body)

	out, err := Decompress(packed.Body)
	require.NoError(t, err)
	assert.Equal(t, res.Data, out)

	_, err = Decompress([]byte("not zstd"))
	assert.Error(t, err)
}

func TestFilePublisher(t *testing.T) {
	dir := t.TempDir()
	p := &FilePublisher{Dir: dir}
	obj, err := NewObject("builds/1", testResult(), false)
	require.NoError(t, err)

	loc, err := p.Publish(context.Background(), obj)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "builds", "1", "tobackend.json"), loc)

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, obj.Body, data)

	var meta fileMeta
	raw, err := os.ReadFile(loc + MetaSuffix)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, contentType, meta.ContentType)
	assert.Equal(t, "doc-digest", meta.Metadata[MetaDocumentDigest])

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Publish(ctx, obj)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewS3PublisherValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  S3Config
		want string
	}{
		{"endpoint", S3Config{}, "endpoint"},
		{"keys", S3Config{Endpoint: "localhost:9000"}, "access key"},
		{"bucket", S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"}, "bucket"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewS3Publisher(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestS3Publisher(t *testing.T) {
	var (
		mu   sync.Mutex
		puts []*http.Request
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && strings.Count(strings.Trim(r.URL.Path, "/"), "/") > 0 {
			mu.Lock()
			puts = append(puts, r.Clone(context.Background()))
			mu.Unlock()
			w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p, err := NewS3Publisher(S3Config{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "access",
		SecretKey: "secret",
		Bucket:    "exports",
	})
	require.NoError(t, err)

	obj, err := NewObject("builds/7", testResult(), true)
	require.NoError(t, err)
	loc, err := p.Publish(context.Background(), obj)
	require.NoError(t, err)
	assert.Equal(t, "s3://exports/builds/7/tobackend.json.zst", loc)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, puts, 1)
	assert.Equal(t, "/exports/builds/7/tobackend.json.zst", puts[0].URL.Path)
	assert.Equal(t, "artifact-digest", puts[0].Header.Get("X-Amz-Meta-Artifact-Digest"))
	assert.Equal(t, "doc-digest", puts[0].Header.Get("X-Amz-Meta-Document-Digest"))
}
