package agentmem

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/liliang-cn/agentmem/pkg/fragment"
	"github.com/liliang-cn/agentmem/pkg/pool"
)

// IngestResult is the outcome of one utterance's pass through the
// ingestion pipeline (§2 "utterance -> C3 (+C5 in parallel) -> C10 ->
// C2 -> C1").
type IngestResult struct {
	Fragment fragment.Fragment
	Added    []pool.AddResult
}

// Ingest runs one utterance through fact extraction and fragment
// extraction concurrently (§2 "C3 (+C5 in parallel)"). The Memory Pool's
// add pipeline applies the Quality Controller's format pre-filter to each
// extracted fact before it ever reaches the Update Decider (wired in
// Open via Pool.SetFactFilter), then runs the decider and writes
// surviving facts to the vector store. Fragment extraction never blocks
// or fails the fact path — a fragment parse failure degrades to a
// zero-value Fragment (§7).
func (e *Engine) Ingest(ctx context.Context, userID, utterance string, at time.Time) (IngestResult, error) {
	var frag fragment.Fragment
	var added []pool.AddResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		frag, err = e.Fragment.Extract(gctx, utterance, at)
		return err
	})
	g.Go(func() error {
		results, err := e.Pool.Add(gctx, userID, []pool.Message{{Role: "user", Content: utterance}}, pool.AddOptions{
			Source: "conversation",
		})
		added = results
		return err
	})
	if err := g.Wait(); err != nil {
		return IngestResult{}, err
	}

	return IngestResult{Fragment: frag, Added: added}, nil
}
