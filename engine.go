package agentmem

import (
	"context"
	"fmt"
	"sync"

	"github.com/liliang-cn/agentmem/pkg/embedding"
	"github.com/liliang-cn/agentmem/pkg/factextract"
	"github.com/liliang-cn/agentmem/pkg/fragment"
	"github.com/liliang-cn/agentmem/pkg/llmprovider"
	"github.com/liliang-cn/agentmem/pkg/logging"
	"github.com/liliang-cn/agentmem/pkg/manager"
	"github.com/liliang-cn/agentmem/pkg/persona"
	"github.com/liliang-cn/agentmem/pkg/pool"
	"github.com/liliang-cn/agentmem/pkg/qualitycontrol"
	"github.com/liliang-cn/agentmem/pkg/systemmem"
	"github.com/liliang-cn/agentmem/pkg/updatedecider"
)

// Engine is the facade binding every component together, analogous to the
// teacher's root DB/System handle (pkg/core/store.go's SQLiteStore, and
// pkg/hindsight/hindsight.go's System): one process-wide instance wired
// once at startup, handed out per-user Managers on demand.
type Engine struct {
	cfg Config
	log logging.Logger

	Pool     *pool.Pool
	Quality  *qualitycontrol.Controller
	Skills   *systemmem.SkillRegistry
	Cache    *systemmem.Cache
	Persona  *persona.Builder
	Fragment *fragment.Extractor

	provider llmprovider.Provider
	decider  *updatedecider.Decider

	mu       sync.Mutex
	managers map[string]*manager.Manager
	closed   bool
}

// Open resolves cfg's provider selection, wires the Memory Pool, Quality
// Controller, System Memory singletons, and Persona Builder, and returns a
// ready Engine. embedder is the caller's text->vector collaborator (§1 —
// an opaque external model this package never constructs on its own).
func Open(cfg Config, embedder embedding.Provider) (*Engine, error) {
	providerCfg, err := cfg.providerConfig()
	if err != nil {
		return nil, fmt.Errorf("agentmem: resolving provider: %w", err)
	}
	provider, err := llmprovider.New(context.Background(), providerCfg)
	if err != nil {
		return nil, fmt.Errorf("agentmem: constructing provider %q: %w", providerCfg.Kind, err)
	}
	return newEngine(cfg, embedder, provider)
}

// newEngine wires every component given an already-resolved provider — a
// seam so tests can substitute a stub llmprovider.Provider instead of
// exercising the real auto-detect + network-backed construction in Open.
func newEngine(cfg Config, embedder embedding.Provider, provider llmprovider.Provider) (*Engine, error) {
	log := logging.NewStd(logLevelFrom(cfg.LogLevel))

	cachedEmbedder, err := embedding.NewCachedProvider(embedder, cfg.EmbedCacheSize)
	if err != nil {
		return nil, fmt.Errorf("agentmem: constructing embedding cache: %w", err)
	}
	bridge := embedding.NewBridge(cachedEmbedder, 0)

	p := pool.New(pool.Config{
		StorePath:  cfg.DataDir + "/memories.db",
		Collection: cfg.Collection,
		Dimension:  cfg.Dimension,
		Embedder:   bridge,
		Logger:     log.With("component", "pool"),
	})

	extractor := factextract.New(provider)
	decider := updatedecider.New(provider)
	fragExtractor := fragment.New(provider)

	p.SetFactExtractor(func(ctx context.Context, userID string, msgs []pool.Message) ([]string, error) {
		fmsgs := make([]factextract.Message, len(msgs))
		for i, m := range msgs {
			fmsgs[i] = factextract.Message{Role: m.Role, Content: m.Content}
		}
		return extractor.Extract(ctx, fmsgs)
	})
	p.SetDecider(func(ctx context.Context, newFact string, existing []updatedecider.ExistingMemory) (updatedecider.Decision, error) {
		return decider.Decide(ctx, newFact, existing)
	})

	quality := qualitycontrol.New(p, func(ctx context.Context, newFact string, existing []updatedecider.ExistingMemory) (updatedecider.Decision, error) {
		return decider.Decide(ctx, newFact, existing)
	})
	p.SetFactFilter(quality.ShouldReject)

	return &Engine{
		cfg:      cfg,
		log:      log,
		Pool:     p,
		Quality:  quality,
		Skills:   systemmem.NewSkillRegistry(),
		Cache:    systemmem.NewCache(cfg.CacheSize),
		Persona:  persona.New(persona.DefaultDisposition(), persona.NewTokenCounter(cfg.Model)),
		Fragment: fragExtractor,
		provider: provider,
		decider:  decider,
		managers: map[string]*manager.Manager{},
	}, nil
}

// ManagerFor returns the Memory Manager bound to userID, constructing and
// caching one on first access (§5 "one Manager instance per active user").
func (e *Engine) ManagerFor(userID string) (*manager.Manager, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrAlreadyClosed
	}
	if m, ok := e.managers[userID]; ok {
		return m, nil
	}
	m := manager.New(manager.Config{
		StorageRoot: e.cfg.DataDir,
		Pool:        e.Pool,
		Decider: func(ctx context.Context, newFact string, existing []updatedecider.ExistingMemory) (updatedecider.Decision, error) {
			return e.decider.Decide(ctx, newFact, existing)
		},
		Logger: e.log.With("user_id", userID),
		Skills: e.Skills,
		Cache:  e.Cache,
	}, userID)
	e.managers[userID] = m
	return m, nil
}

// Provider exposes the resolved language model provider (§6), e.g. for a
// caller that wants to drive its own chat loop alongside the memory engine.
func (e *Engine) Provider() llmprovider.Provider { return e.provider }

// Close resets the Memory Pool (closing its store handle) and marks the
// Engine unusable (§4.2 "reset() entry point").
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.Pool.Reset()
	return nil
}

func logLevelFrom(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
