package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/siwzmap/siwzmap/internal/classify"
	"github.com/siwzmap/siwzmap/internal/document"
	"github.com/siwzmap/siwzmap/internal/loader"
	"github.com/siwzmap/siwzmap/internal/segment"
	"github.com/siwzmap/siwzmap/internal/variant"
)

// Result is the full output of one document run.
type Result struct {
	DocID    string                    `json:"doc_id" yaml:"doc_id"`
	Filename string                    `json:"filename" yaml:"filename"`
	Units    []document.Unit           `json:"units" yaml:"units"`
	Labels   []document.Classification `json:"labels" yaml:"labels"`
	Groups   []document.Group          `json:"groups" yaml:"groups"`
	Stats    Stats                     `json:"stats" yaml:"stats"`
}

// Stats summarizes one run for logs and API responses.
type Stats struct {
	Blocks      int            `json:"blocks" yaml:"blocks"`
	Units       int            `json:"units" yaml:"units"`
	Groups      int            `json:"groups" yaml:"groups"`
	LabelCounts map[string]int `json:"label_counts" yaml:"label_counts"`
	ElapsedMS   int64          `json:"elapsed_ms" yaml:"elapsed_ms"`
}

// Worker runs single documents through load, segment, classify and
// aggregate phases.
type Worker struct {
	classifier classify.Classifier
	log        *slog.Logger
	segCfg     segment.Config
	varCfg     variant.Config

	segmentConcurrency int
}

func NewWorker(classifier classify.Classifier, log *slog.Logger, segCfg segment.Config, varCfg variant.Config, segmentConcurrency int) *Worker {
	if segmentConcurrency <= 0 {
		segmentConcurrency = 8
	}
	return &Worker{
		classifier:         classifier,
		log:                log,
		segCfg:             segCfg,
		varCfg:             varCfg,
		segmentConcurrency: segmentConcurrency,
	}
}

// Process runs the full pipeline for a job, attaching the Result on
// success.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID)
	started := time.Now()

	// Phase 1: Load
	job.SetStatus(StatusLoading, "loading")
	l, err := loader.ForFile(job.Filename)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "loading")
		return
	}
	blocks, err := l.Load(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("load failed", "error", err)
		job.AddError(fmt.Sprintf("load: %s", err))
		job.SetStatus(StatusFailed, "loading")
		return
	}
	job.SetTotalBlocks(len(blocks))
	job.SetContentHash(ContentHashHex(job.FileData()))
	log.Info("loaded document", "blocks", len(blocks))

	if len(blocks) == 0 {
		job.AddError("no extractable content")
		job.SetStatus(StatusFailed, "loading")
		return
	}

	// Phase 2: Segment blocks in parallel, then restore document order.
	job.SetStatus(StatusSegmenting, "segmenting")
	units, err := w.segmentBlocks(ctx, job, blocks)
	if err != nil {
		log.Error("segmentation failed", "error", err)
		job.AddError(fmt.Sprintf("segment: %s", err))
		job.SetStatus(StatusFailed, "segmenting")
		return
	}
	log.Info("segmented document", "units", len(units))

	// Phase 3: Classify
	job.SetStatus(StatusClassifying, "classifying")
	labels, err := w.classifier.Classify(ctx, units)
	if err != nil {
		log.Error("classification failed", "error", err)
		job.AddError(fmt.Sprintf("classify: %s", err))
		job.SetStatus(StatusFailed, "classifying")
		return
	}

	// Phase 4: Aggregate
	job.SetStatus(StatusAggregating, "aggregating")
	tagged, groups, err := variant.Aggregate(units, labels, w.varCfg)
	if err != nil {
		log.Error("aggregation failed", "error", err)
		job.AddError(fmt.Sprintf("aggregate: %s", err))
		job.SetStatus(StatusFailed, "aggregating")
		return
	}
	job.SetCounts(len(tagged), len(groups))

	labelCounts := make(map[string]int, 6)
	for _, c := range labels {
		labelCounts[string(c.Label)]++
	}

	job.SetResult(&Result{
		DocID:    job.DocID,
		Filename: job.Filename,
		Units:    tagged,
		Labels:   labels,
		Groups:   groups,
		Stats: Stats{
			Blocks:      len(blocks),
			Units:       len(tagged),
			Groups:      len(groups),
			LabelCounts: labelCounts,
			ElapsedMS:   time.Since(started).Milliseconds(),
		},
	})
	job.SetStatus(StatusCompleted, "done")
	log.Info("processing complete",
		"units", len(tagged), "groups", len(groups),
		"elapsed", time.Since(started))
}

// segmentBlocks splits blocks concurrently with a bounded semaphore and
// stitches the units back into original block order.
func (w *Worker) segmentBlocks(ctx context.Context, job *Job, blocks []document.Block) ([]document.Unit, error) {
	type blockResult struct {
		idx   int
		units []document.Unit
		err   error
	}
	results := make(chan blockResult, len(blocks))
	sem := make(chan struct{}, w.segmentConcurrency)

	for i, blk := range blocks {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		go func(i int, blk document.Block) {
			defer func() { <-sem }()
			units, err := segment.Split(blk, w.segCfg)
			results <- blockResult{idx: i, units: units, err: err}
		}(i, blk)
	}

	perBlock := make([][]document.Unit, len(blocks))
	for range blocks {
		r := <-results
		job.IncrBlocksSegmented()
		if r.err != nil {
			return nil, fmt.Errorf("block %s: %w", blocks[r.idx].ID, r.err)
		}
		perBlock[r.idx] = r.units
	}

	var units []document.Unit
	for _, bu := range perBlock {
		units = append(units, bu...)
	}
	return units, nil
}
