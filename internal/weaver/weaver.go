// Package weaver is the static analysis pass. It walks replicated classes of
// compiled modules, collects their sync fields and remote methods, and
// flushes the accumulated facts to the binary artifact once per session.
package weaver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Alia5/syncbackend/wire"
)

// Config controls which classes a session analyzes.
type Config struct {
	// BaseClass is the replication base every analyzed class derives from.
	BaseClass string
	// SkipNamespaces and SkipFullNames are prefix lists of framework and
	// third-party code that is never analyzed, except BaseClass itself.
	SkipNamespaces []string
	SkipFullNames  []string
	// Workers bounds the number of modules analyzed in parallel; zero means
	// unbounded.
	Workers int
}

func DefaultConfig() Config {
	return Config{
		BaseClass: "Mirror.NetworkBehaviour",
		SkipNamespaces: []string{
			"kcp2k", "_SyncToBackend", "System", "Mirror", "GeneratedReaderWriter",
			"Weaver", "StinkySteak", "Microsoft", "Edgegap",
		},
		SkipFullNames: []string{"Mirror", "Weaver", "Unity", "StinkySteak", "kcp2k", "Edgegap"},
	}
}

func (c Config) skipped(td *TypeDef) bool {
	full := td.FullName()
	if full == c.BaseClass {
		return false
	}
	for _, p := range c.SkipNamespaces {
		if strings.HasPrefix(td.Namespace, p) {
			return true
		}
	}
	for _, p := range c.SkipFullNames {
		if strings.HasPrefix(full, p) {
			return true
		}
	}
	return false
}

type classEntry struct {
	once  sync.Once
	count int
}

// Session is the accumulator of one analysis pass. Workers analyze modules
// without holding the lock and take it only to claim classes, append
// results and flush.
type Session struct {
	cfg      Config
	modules  []*Module
	logger   *slog.Logger
	diags    *Diagnostics
	analyzer *Analyzer

	mu      sync.Mutex
	facts   wire.Facts
	classes map[string]*classEntry
	marked  []typeRef
}

func NewSession(cfg Config, modules []*Module, logger *slog.Logger) *Session {
	diags := NewDiagnostics(logger)
	index := newTypeIndex(modules)
	return &Session{
		cfg:      cfg,
		modules:  modules,
		logger:   logger,
		diags:    diags,
		analyzer: &Analyzer{cfg: cfg, index: index, diags: diags},
		classes:  make(map[string]*classEntry),
	}
}

// Weave runs a full session over modules.
func Weave(ctx context.Context, cfg Config, modules []*Module, logger *slog.Logger) (*Session, error) {
	s := NewSession(cfg, modules, logger)
	if err := s.Run(ctx); err != nil {
		return s, err
	}
	return s, nil
}

// Run analyzes every module of the session in parallel, then stamps the
// processed marker onto each newly analyzed class.
func (s *Session) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if s.cfg.Workers > 0 {
		g.SetLimit(s.cfg.Workers)
	}
	for _, m := range s.modules {
		g.Go(func() error {
			return s.WeaveModule(ctx, m)
		})
	}
	err := g.Wait()
	s.applyMarkers()
	return err
}

// WeaveModule analyzes the replicated classes of one module in declaration
// order, each after its ancestors.
func (s *Session) WeaveModule(ctx context.Context, mod *Module) error {
	s.logger.Debug("Weaving module", "module", mod.Name, "types", len(mod.Types))
	for _, td := range mod.Types {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("weave %s: %w", mod.Name, err)
		}
		if !td.IsClass() || s.cfg.skipped(td) {
			continue
		}
		chain, ok := s.chain(typeRef{module: mod, def: td})
		if !ok {
			continue
		}
		for _, ref := range chain {
			s.process(ref)
		}
	}
	return nil
}

// chain returns ref and its ancestors below BaseClass, base first. ok is
// false when ref does not resolve to BaseClass. The chain stops below the
// first skipped ancestor; its fields belong to framework code and are
// neither emitted nor counted.
func (s *Session) chain(ref typeRef) ([]typeRef, bool) {
	var (
		out     []typeRef
		seen    = map[string]bool{}
		inFramework bool
	)
	for {
		name := ref.def.FullName()
		if name == s.cfg.BaseClass || seen[name] {
			return nil, false
		}
		seen[name] = true
		if !inFramework {
			out = append([]typeRef{ref}, out...)
		}

		base := stripGenerics(ref.def.BaseType)
		if base == s.cfg.BaseClass {
			return out, true
		}
		next, ok := s.analyzer.index.lookup(base)
		if !ok {
			return nil, false
		}
		if s.cfg.skipped(next.def) {
			inFramework = true
		}
		ref = next
	}
}

func (s *Session) claim(name string) *classEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.classes[name]
	if !ok {
		e = &classEntry{}
		s.classes[name] = e
	}
	return e
}

// process analyzes a class exactly once per session. Concurrent callers
// block until the first one has finished, so a derived class always reads
// its base's final count.
func (s *Session) process(ref typeRef) {
	e := s.claim(ref.def.FullName())
	e.once.Do(func() {
		e.count = s.processClass(ref)
	})
}

// syncFieldStart is the number of dirty bits consumed by base and its
// ancestors. base must already have been processed.
func (s *Session) syncFieldStart(base string) int {
	s.mu.Lock()
	e, ok := s.classes[stripGenerics(base)]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	return e.count
}

func (s *Session) processClass(ref typeRef) int {
	mod, td := ref.module, ref.def
	start := s.syncFieldStart(td.BaseType)

	if td.Method(ProcessedMarker) != nil {
		_, count := s.analyzer.collectSyncFields(mod, td, start, false)
		s.logger.Debug("Skipping processed class", "class", td.FullName(), "syncFields", count)
		return count
	}

	fields, count := s.analyzer.CollectSyncFields(mod, td, start)
	methods := s.analyzer.CollectMethods(mod, td)
	methods = append(methods, wire.RemoteMethod{
		DeclaringClass:    td.FullName(),
		Name:              ProcessedMarker,
		RequiresAuthority: true,
	})
	manual := td.Method(deserializeMethod) != nil

	s.mu.Lock()
	s.marked = append(s.marked, ref)
	s.facts.Methods = append(s.facts.Methods, methods...)
	if !manual {
		s.facts.SyncFields = append(s.facts.SyncFields, fields...)
	}
	s.mu.Unlock()

	s.logger.Debug("Processed class", "class", td.FullName(), "syncFields", len(fields), "methods", len(methods), "dirtyBits", count)
	return count
}

func (s *Session) applyMarkers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ref := range s.marked {
		if ref.def.Method(ProcessedMarker) == nil {
			ref.def.Methods = append(ref.def.Methods, &MethodDef{Name: ProcessedMarker})
		}
	}
}

// Modified returns the modules that gained processed markers, in session
// order.
func (s *Session) Modified() []*Module {
	s.mu.Lock()
	defer s.mu.Unlock()
	touched := map[*Module]bool{}
	for _, ref := range s.marked {
		touched[ref.module] = true
	}
	var out []*Module
	for _, m := range s.modules {
		if touched[m] {
			out = append(out, m)
		}
	}
	return out
}

// Facts returns a copy of what has been accumulated so far.
func (s *Session) Facts() wire.Facts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return wire.Facts{
		SyncFields: append([]wire.SyncField(nil), s.facts.SyncFields...),
		Methods:    append([]wire.RemoteMethod(nil), s.facts.Methods...),
	}
}

func (s *Session) Diagnostics() *Diagnostics {
	return s.diags
}

// Flush writes the accumulated facts to the artifact at path and returns the
// encoded bytes.
func (s *Session) Flush(path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := wire.WriteArtifact(path, s.facts)
	if err != nil {
		return nil, fmt.Errorf("flush session: %w", err)
	}
	s.logger.Info("Wrote artifact", "path", path, "syncFields", len(s.facts.SyncFields), "methods", len(s.facts.Methods), "digest", wire.Digest(data))
	return data, nil
}
