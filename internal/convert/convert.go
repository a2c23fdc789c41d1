package convert

import (
	"context"
	"time"

	"github.com/dgallion1/docresolve/internal/doctree"
	"github.com/dgallion1/docresolve/internal/resolve"
	"github.com/dgallion1/docresolve/internal/score"
)

// Options control a full conversion.
type Options struct {
	// Path is the source path; it names the root for cycle reporting and is
	// the classifier's path hint.
	Path string
	// Category overrides classification. Unrecognized values score with
	// the general profile and a warning.
	Category string
	// Baseline is a reference extraction of the source. When empty the
	// text of the unresolved document is used.
	Baseline string
	// Output is rendered presentational markup for the output checks.
	Output string
	Limits Limits
	// Relaxed resolves missing blocks to unresolved-reference nodes
	// instead of failing.
	Relaxed bool
}

// Report is the outcome of a successful conversion.
type Report struct {
	Title      string          `json:"title"`
	Path       string          `json:"path,omitempty"`
	Category   score.Category  `json:"category"`
	Classified bool            `json:"classified"`
	Tree       doctree.Tree    `json:"tree"`
	Summary    doctree.Summary `json:"summary"`
	Score      score.Result    `json:"score"`
	References resolve.Stats   `json:"references"`
	Relaxed    bool            `json:"relaxed,omitempty"`
	Duration   time.Duration   `json:"duration_ns"`
}

// Convert resolves and parses doc, classifies it when no category is given,
// and scores it.
func (e *Engine) Convert(ctx context.Context, doc *doctree.Document, opts Options) (*Report, error) {
	start := time.Now()
	res, err := e.Resolve(ctx, doc, opts)
	if err != nil {
		e.log.Debug("conversion failed", "path", opts.Path, "error", err)
		return nil, err
	}
	rep := e.Assess(doc, res, opts)
	rep.Duration = time.Since(start)

	e.log.Debug("conversion complete",
		"path", opts.Path,
		"category", rep.Category,
		"total", rep.Score.Total,
		"blocks", len(res.References.Blocks),
		"duration", rep.Duration,
	)
	return rep, nil
}

// Resolve is the resolve-and-parse half of Convert.
func (e *Engine) Resolve(ctx context.Context, doc *doctree.Document, opts Options) (*Resolution, error) {
	return e.resolve(ctx, e.rootID(opts.Path), doc.Body, opts.Limits, opts.Relaxed)
}

// Assess classifies and scores a resolution of doc. Duration is left for
// the caller to fill in.
func (e *Engine) Assess(doc *doctree.Document, res *Resolution, opts Options) *Report {
	rep := &Report{
		Title:      doc.Title,
		Path:       opts.Path,
		Tree:       res.Tree,
		Summary:    doctree.Summarize(res.Tree),
		References: res.References,
		Relaxed:    opts.Relaxed,
	}

	category := score.Category(opts.Category)
	if opts.Category == "" {
		category = e.classifier.Classify(res.Tree, opts.Path)
		rep.Classified = true
	} else if c, ok := score.ParseCategory(opts.Category); ok {
		category = c
	}

	baseline := opts.Baseline
	if baseline == "" {
		baseline = doctree.PlainText(doc.Body)
	}
	rep.Score = e.scorer.Score(res.Tree, category, score.Evidence{
		BaselineText: baseline,
		ExpectedTags: doctree.Summarize(doc.Body).Tags,
		Output:       opts.Output,
	})
	rep.Category = rep.Score.Category
	return rep
}
