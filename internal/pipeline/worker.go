package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docresolve/internal/convert"
	"github.com/dgallion1/docresolve/internal/docerr"
	"github.com/dgallion1/docresolve/internal/parser"
)

// Worker processes a single conversion job.
type Worker struct {
	engine  *convert.Engine
	parsers parser.Options
	stats   *LatencyStats
	log     *slog.Logger
}

func NewWorker(engine *convert.Engine, parsers parser.Options, stats *LatencyStats, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{engine: engine, parsers: parsers, stats: stats, log: log}
}

// Process extracts, resolves and scores the job's upload.
func (w *Worker) Process(ctx context.Context, job *Job) {
	start := time.Now()
	log := w.log.With("job_id", job.ID, "filename", job.Filename)

	// Phase 1: Extract
	job.SetStatus(StatusExtracting, "extracting")
	p, err := parser.ForFileWith(job.Filename, w.parsers)
	if err != nil {
		log.Error("unsupported format", "error", err)
		w.fail(job, "extracting", KindExtraction, err)
		return
	}
	doc, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("extract failed", "error", err)
		w.fail(job, "extracting", KindExtraction, fmt.Errorf("extract: %w", err))
		return
	}
	if job.Options.Title != "" {
		doc.Title = job.Options.Title
	}

	opts := convert.Options{
		Path:     job.Filename,
		Category: job.Options.Category,
		Output:   job.Options.Output,
		Limits:   job.Options.Limits,
		Relaxed:  job.Options.Relaxed,
	}

	// Phase 2: Resolve references and promote structure.
	job.SetStatus(StatusResolving, "resolving")
	res, err := w.engine.Resolve(ctx, doc, opts)
	if err != nil {
		kind := docerr.KindOf(err)
		log.Warn("resolve failed", "kind", kind, "error", err)
		w.fail(job, "resolving", kind, err)
		return
	}
	log.Info("resolved document",
		"blocks", len(res.References.Blocks),
		"cache_hits", res.References.Hits,
	)

	// Phase 3: Classify and score.
	job.SetStatus(StatusScoring, "scoring")
	rep := w.engine.Assess(doc, res, opts)
	rep.Duration = time.Since(start)
	if w.stats != nil {
		w.stats.Record(rep.Duration)
	}
	job.Complete(rep)
	log.Info("conversion complete",
		"category", rep.Category,
		"total", rep.Score.Total,
		"grade", rep.Score.Grade,
		"duration", rep.Duration,
	)
}

func (w *Worker) fail(job *Job, phase, kind string, err error) {
	if w.stats != nil {
		w.stats.RecordFailure()
	}
	job.Fail(phase, kind, err.Error())
}
