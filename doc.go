// Package agentmem is a personal memory engine for LLM agents: a hybrid
// vector+keyword Memory Pool (C2), an extraction/decision pipeline that
// turns raw conversation into durable facts (C3/C4), per-user scoped
// stores for episodic history, preferences, and plans (C7), a quality
// controller that filters and deduplicates incoming memories (C10), and a
// Persona Builder that renders a bounded context block for system-prompt
// injection (C12).
//
// # Quick Start
//
//	cfg := agentmem.DefaultConfig("./data")
//	engine, err := agentmem.Open(cfg, embedder) // embedder: pkg/embedding.Provider
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	mgr, err := engine.ManagerFor("user-123")
//	res, err := engine.Ingest(ctx, "user-123", "I prefer dark roast coffee", time.Now())
//
// # Configuration
//
// Config is loaded once via spf13/viper (§9 "dynamic config dataclasses
// ... validated configuration record") and never re-read from the
// environment afterward — this is what keeps provider auto-detect
// (pkg/llmprovider.AutoDetect) a pure function of its input map.
//
// See SPEC_FULL.md in the repository root for the full component map.
package agentmem
