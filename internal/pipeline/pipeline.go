package pipeline

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"aigc_sentinel/internal/aidetect"
)

type Document struct {
	Name string
	Text string
}

// Outcome is the scoring result of one document. Err is set instead of
// Result when the run failed or was cancelled.
type Outcome struct {
	Name   string
	Result aidetect.Result
	Err    error
}

// ScoreDocuments runs one independent engine run per document, at most
// workers at a time. Outcomes keep the order of docs. A failing document
// never stops the others; only ctx cancellation does.
func ScoreDocuments(ctx context.Context, engine *aidetect.Engine, c aidetect.Classifier, docs []Document, workers int) []Outcome {
	if len(docs) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers < 1 {
			workers = 1
		}
	}

	out := make([]Outcome, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, doc := range docs {
		out[i].Name = doc.Name
		g.Go(func() error {
			res, err := engine.Run(gctx, doc.Text, c, nil)
			out[i].Result = res
			out[i].Err = err
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Failed returns the outcomes that carry an error.
func Failed(outcomes []Outcome) []Outcome {
	var out []Outcome
	for _, o := range outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}
