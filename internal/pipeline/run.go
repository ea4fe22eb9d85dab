package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/siwzmap/siwzmap/internal/classify"
	"github.com/siwzmap/siwzmap/internal/config"
	"github.com/siwzmap/siwzmap/internal/segment"
	"github.com/siwzmap/siwzmap/internal/variant"
)

// RunDocument processes one document synchronously. The CLI path uses
// this; the server goes through the Orchestrator queue instead.
func RunDocument(ctx context.Context, cfg config.Config, classifier classify.Classifier, log *slog.Logger, filename string, data []byte) (*Result, error) {
	segCfg := segment.DefaultConfig()
	segCfg.SoftMinChars = cfg.SoftMinChars
	segCfg.SoftMaxChars = cfg.SoftMaxChars

	w := NewWorker(classifier, log, segCfg, variant.Config{DefaultGroupID: cfg.DefaultGroupID}, cfg.SegmentConcurrency)

	job := newJob(filename, data)
	w.Process(ctx, job)

	if res := job.Result(); res != nil {
		return res, nil
	}
	snap := job.Snapshot()
	if len(snap.Progress.Errors) > 0 {
		return nil, fmt.Errorf("processing failed in phase %s: %s", snap.Phase, snap.Progress.Errors[len(snap.Progress.Errors)-1])
	}
	return nil, fmt.Errorf("processing failed in phase %s", snap.Phase)
}
