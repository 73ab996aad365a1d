// Package exporter joins the analysis artifact with the project's prefabs and
// active scene into the consolidated tobackend.json document.
package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Alia5/syncbackend/exporttypes"
	"github.com/Alia5/syncbackend/identity"
	"github.com/Alia5/syncbackend/internal/hook"
	"github.com/Alia5/syncbackend/internal/log"
	"github.com/Alia5/syncbackend/internal/scenegraph"
	"github.com/Alia5/syncbackend/wire"
)

// OutputName is the file name of the consolidated document.
const OutputName = "tobackend.json"

// AssetSource lists the project's assets. A catalog can stand in for the
// walker's own asset enumeration.
type AssetSource interface {
	EnumerateAllAssets() ([]scenegraph.Asset, error)
}

// Validator checks an encoded document before it is written.
type Validator interface {
	ValidateJSON(data []byte) error
}

type Options struct {
	// Dir is the work directory for fragments and the document.
	Dir string
	// Artifact is the analysis artifact path; defaults to Dir/build.bin.
	Artifact string
	// SceneExtension marks scene assets.
	SceneExtension string
	// PrefabFolder limits the prefab pass to one folder.
	PrefabFolder string
	// SkipPrefabs are path prefixes excluded from the prefab pass.
	SkipPrefabs []string
	CacheSize   int

	Assets    AssetSource
	Validator Validator
	Raw       log.RawLogger
}

func DefaultOptions() Options {
	return Options{
		Dir:            wire.DefaultDir,
		SceneExtension: ".unity",
		SkipPrefabs:    []string{"Assets/Mirror/Tests/", "Assets/Mirror/Examples/"},
		CacheSize:      256,
	}
}

// Result describes one written document.
type Result struct {
	Path           string
	Data           []byte
	Digest         string
	ArtifactDigest string
	Document       exporttypes.Document
}

// Exporter owns one export session. The first Refresh performs the one-time
// setup; every Refresh rebuilds the document from that setup and the current
// active scene.
type Exporter struct {
	opts      Options
	walker    scenegraph.Walker
	hooks     *hook.Registry
	logger    *slog.Logger
	fragments *FragmentStore

	mu             sync.Mutex
	initialized    bool
	base           exporttypes.Document
	artifactDigest string
	unregister     func()
	last           *Result
}

func New(walker scenegraph.Walker, hooks *hook.Registry, logger *slog.Logger, opts Options) (*Exporter, error) {
	if opts.Dir == "" {
		opts.Dir = wire.DefaultDir
	}
	if opts.Artifact == "" {
		opts.Artifact = filepath.Join(opts.Dir, wire.ArtifactName)
	}
	if opts.SceneExtension == "" {
		opts.SceneExtension = ".unity"
	}
	store, err := NewFragmentStore(opts.Dir, opts.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Exporter{
		opts:      opts,
		walker:    walker,
		hooks:     hooks,
		logger:    logger,
		fragments: store,
	}, nil
}

// OutputPath is where Refresh writes the document.
func (e *Exporter) OutputPath() string {
	return filepath.Join(e.opts.Dir, OutputName)
}

// Refresh rebuilds and writes the document. It fails only when the artifact
// cannot be read or the document cannot be written; everything else is
// logged and left out.
func (e *Exporter) Refresh(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.fragments.Purge()
	if !e.initialized {
		if err := e.setup(ctx); err != nil {
			return nil, err
		}
		e.initialized = true
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := clone(e.base)
	e.exportActiveScene(&doc)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.reconcile(&doc); err != nil {
		e.logger.Warn("Cannot reconcile scene ids", "error", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	if e.opts.Validator != nil {
		if err := e.opts.Validator.ValidateJSON(data); err != nil {
			e.logger.Warn("Document does not match schema", "error", err)
		}
	}

	out := e.OutputPath()
	if err := writeFile(out, data); err != nil {
		return nil, err
	}
	res := &Result{
		Path:           out,
		Data:           data,
		Digest:         wire.Digest(data),
		ArtifactDigest: e.artifactDigest,
		Document:       doc,
	}
	e.last = res
	e.logger.Info("Exported document", "path", out,
		"identities", len(doc.NetworkIdentities), "methods", len(doc.Methods),
		"syncVars", len(doc.SyncVars), "digest", res.Digest)
	return res, nil
}

// Last returns the most recent Refresh result, if any.
func (e *Exporter) Last() *Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Close detaches the exporter from the hook registry.
func (e *Exporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.unregister != nil {
		e.unregister()
		e.unregister = nil
	}
	return nil
}

func (e *Exporter) setup(ctx context.Context) error {
	if e.hooks != nil && e.unregister == nil {
		e.unregister = e.hooks.Register(lockedLifecycle{e})
	}

	facts, raw, err := wire.ReadArtifact(e.opts.Artifact)
	if err != nil {
		return fmt.Errorf("load artifact: %w", err)
	}
	if e.opts.Raw != nil {
		e.opts.Raw.Log(true, e.opts.Artifact, raw)
	}
	e.artifactDigest = wire.Digest(raw)
	e.logger.Info("Loaded artifact", "path", e.opts.Artifact,
		"syncFields", len(facts.SyncFields), "methods", len(facts.Methods), "digest", e.artifactDigest)

	base := newDocument(facts)
	e.loadAssets(&base)
	if err := ctx.Err(); err != nil {
		return err
	}
	e.exportPrefabs(&base)
	e.base = base
	return nil
}

func (e *Exporter) loadAssets(doc *exporttypes.Document) {
	var src AssetSource = e.walker
	if e.opts.Assets != nil {
		src = e.opts.Assets
	}
	assets, err := src.EnumerateAllAssets()
	if err != nil {
		e.logger.Warn("Cannot enumerate assets", "error", err)
		return
	}
	for _, a := range assets {
		id, err := identity.AssetIDFromString(a.GUID)
		if err != nil {
			e.logger.Debug("Skipping asset with invalid guid", "path", a.Path, "guid", a.GUID)
			continue
		}
		doc.Assets.Set(id, a.Path)
		if strings.EqualFold(path.Ext(a.Path), e.opts.SceneExtension) {
			doc.SceneIDs.Add(a.Path, nil)
		}
	}
}

func (e *Exporter) exportPrefabs(doc *exporttypes.Document) {
	paths, err := e.walker.EnumeratePrefabs(e.opts.PrefabFolder)
	if err != nil {
		e.logger.Warn("Cannot enumerate prefabs", "error", err)
		return
	}
	for _, p := range paths {
		if e.skipPrefab(p) {
			continue
		}
		o, err := e.walker.LoadPrefab(p)
		if err != nil {
			e.logger.Warn("Cannot load prefab", "path", p, "error", err)
			continue
		}
		if ni, ok := e.identityOf(o, "", doc); ok {
			doc.NetworkIdentities = append(doc.NetworkIdentities, ni)
		}
		if c, ok := e.walker.RoomManagerComponent(o); ok {
			doc.NetworkRoomManagerSettings = append(doc.NetworkRoomManagerSettings, e.roomManagerSetting(c))
		} else if c, ok := e.walker.ManagerComponent(o); ok {
			doc.NetworkManagerSettings = append(doc.NetworkManagerSettings, e.managerSetting(c))
		}
	}
}

func (e *Exporter) skipPrefab(p string) bool {
	for _, prefix := range e.opts.SkipPrefabs {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// exportActiveScene writes the fragments of every replicated object of the
// active scene, depth first.
func (e *Exporter) exportActiveScene(doc *exporttypes.Document) {
	scene := e.walker.ActiveScene()
	roots, err := e.walker.ActiveSceneRoots()
	if err != nil {
		e.logger.Warn("Cannot read active scene", "scene", scene, "error", err)
		return
	}
	var walk func(o *scenegraph.Object)
	walk = func(o *scenegraph.Object) {
		e.exportSceneObject(scene, o, doc)
		for _, c := range e.walker.Children(o) {
			walk(c)
		}
	}
	for _, r := range roots {
		walk(r)
	}
}

func (e *Exporter) exportSceneObject(scene string, o *scenegraph.Object, doc *exporttypes.Document) {
	ni, ok := e.identityOf(o, scene, doc)
	if !ok {
		return
	}
	if err := e.fragments.Write(identityFile(ni.FragmentKey()), ni); err != nil {
		e.logger.Warn("Cannot write identity fragment", "object", o.Name, "error", err)
	}
	if c, ok := e.walker.ManagerComponent(o); ok {
		if err := e.fragments.Write(managerFile, e.managerSetting(c)); err != nil {
			e.logger.Warn("Cannot write manager fragment", "object", o.Name, "error", err)
		}
	}
}

// reconcile resolves known scene paths against the scene id fragments and
// merges the identities they point at. Scene paths nobody resolves keep a
// null id.
func (e *Exporter) reconcile(doc *exporttypes.Document) error {
	names, err := e.fragments.Glob(sceneIDPrefix + "*" + fragmentExt)
	if err != nil {
		return err
	}
	for _, name := range names {
		raw, ok, err := e.fragments.ReadRaw(name)
		if err != nil || !ok {
			e.logger.Debug("Skipping scene id fragment", "name", name, "error", err)
			continue
		}
		scenePath := string(raw)
		if !doc.SceneIDs.Has(scenePath) {
			continue
		}
		id := strings.TrimSuffix(name[strings.LastIndexByte(name, '_')+1:], fragmentExt)
		doc.SceneIDs.Set(scenePath, &id)

		var ni exporttypes.NetworkIdentity
		found, err := e.fragments.Read(identityPrefix+id+fragmentExt, &ni)
		switch {
		case err != nil:
			e.logger.Warn("Cannot read identity fragment", "id", id, "error", err)
		case found:
			doc.NetworkIdentities = append(doc.NetworkIdentities, ni)
		default:
			e.logger.Debug("Identity fragment not available yet", "id", id)
		}
	}
	return nil
}

// lockedLifecycle serializes hook callbacks with Refresh.
type lockedLifecycle struct {
	e *Exporter
}

func (l lockedLifecycle) Awake(o *scenegraph.Object) {
	l.e.mu.Lock()
	defer l.e.mu.Unlock()
	l.e.Awake(o)
}

func (l lockedLifecycle) Start(o *scenegraph.Object) {
	l.e.mu.Lock()
	defer l.e.mu.Unlock()
	l.e.Start(o)
}

// writeFile replaces path atomically.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
