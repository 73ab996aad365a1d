package wire

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2b"

	"github.com/Alia5/syncbackend/internal/util"
)

// Default artifact location relative to the project root.
const (
	DefaultDir   = "_SyncToBackend"
	ArtifactName = "build.bin"
)

// DefaultArtifactPath is where the analysis pass leaves its output.
var DefaultArtifactPath = filepath.Join(DefaultDir, ArtifactName)

// WriteArtifact encodes f and replaces the file at path wholesale. It returns
// the bytes written.
func WriteArtifact(path string, f Facts) ([]byte, error) {
	data, err := Encode(f)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}

	unlock, err := util.LockFile(path+".lock", true)
	if err != nil {
		return nil, err
	}
	defer func() { _ = unlock() }()

	tmp, err := os.CreateTemp(filepath.Dir(path), ".build-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return nil, fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return nil, fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return nil, fmt.Errorf("replace artifact: %w", err)
	}
	return data, nil
}

// ReadArtifact loads and decodes the artifact at path. The raw bytes are
// returned alongside the facts for tracing and fingerprinting.
func ReadArtifact(path string) (Facts, []byte, error) {
	unlock, err := util.LockFile(path+".lock", false)
	if err != nil {
		return Facts{}, nil, err
	}
	defer func() { _ = unlock() }()

	data, err := os.ReadFile(path)
	if err != nil {
		return Facts{}, nil, fmt.Errorf("read artifact: %w", err)
	}
	f, err := Decode(data)
	if err != nil {
		return Facts{}, data, fmt.Errorf("decode %s: %w", path, err)
	}
	return f, data, nil
}

// Digest returns the hex BLAKE2b-256 fingerprint of an encoded artifact.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
