package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/siwzmap/siwzmap/internal/classify"
	"github.com/siwzmap/siwzmap/internal/config"
	"github.com/siwzmap/siwzmap/internal/segment"
	"github.com/siwzmap/siwzmap/internal/variant"
)

// Orchestrator manages the document processing pipeline.
type Orchestrator struct {
	jobs       *JobStore
	queue      chan *Job
	classifier classify.Classifier
	log        *slog.Logger
	cfg        config.Config
	segCfg     segment.Config
	varCfg     variant.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, classifier classify.Classifier, log *slog.Logger) *Orchestrator {
	segCfg := segment.DefaultConfig()
	segCfg.SoftMinChars = cfg.SoftMinChars
	segCfg.SoftMaxChars = cfg.SoftMaxChars

	return &Orchestrator{
		jobs:       NewJobStore(cfg.JobTTL),
		queue:      make(chan *Job, cfg.MaxQueueSize),
		classifier: classifier,
		log:        log,
		cfg:        cfg,
		segCfg:     segCfg,
		varCfg:     variant.Config{DefaultGroupID: cfg.DefaultGroupID},
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for i := 0; i < o.cfg.WorkerCount; i++ {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.classifier, o.log, o.segCfg, o.varCfg, o.cfg.SegmentConcurrency)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// NewJob builds a queued job for an uploaded file.
func (o *Orchestrator) NewJob(filename string, data []byte) *Job {
	return newJob(filename, data)
}

func newJob(filename string, data []byte) *Job {
	now := time.Now()
	job := &Job{
		ID:        newID(),
		DocID:     newID(),
		Status:    StatusQueued,
		Phase:     "queued",
		Filename:  filename,
		CreatedAt: now,
		UpdatedAt: now,
	}
	job.SetFileData(data)
	return job
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}
