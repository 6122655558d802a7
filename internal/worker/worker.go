// Package worker dispatches background pipeline runs.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bluecarbon-mrv/backend/internal/logging"
	"bluecarbon-mrv/backend/internal/services"
	"bluecarbon-mrv/backend/pkg/models"
)

// Runner executes the MRV pipeline for one submission.
type Runner interface {
	RunPipeline(ctx context.Context, submissionID string) (*models.PipelineResult, error)
}

// Dispatcher queues submissions for background processing. Upload-triggered
// and manually-triggered runs share the same orchestrator, so both paths are
// semantically identical; the dispatcher only moves the run off the request
// goroutine.
type Dispatcher struct {
	runner  Runner
	logger  *logging.Logger
	jobs    chan string
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with a bounded queue.
func NewDispatcher(runner Runner, logger *logging.Logger, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Dispatcher{
		runner:  runner,
		logger:  logger,
		jobs:    make(chan string, queueSize),
		timeout: 5 * time.Minute,
	}
}

// Start launches the worker goroutines. They drain the queue until Shutdown.
func (d *Dispatcher) Start(workers int) {
	if workers <= 0 {
		workers = 2
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for id := range d.jobs {
				d.process(id)
			}
		}()
	}
}

// Enqueue schedules a submission for processing. A full queue is reported to
// the caller instead of blocking the upload request.
func (d *Dispatcher) Enqueue(submissionID string) error {
	select {
	case d.jobs <- submissionID:
		return nil
	default:
		return fmt.Errorf("pipeline queue full, submission %s not scheduled", submissionID)
	}
}

// Shutdown stops accepting jobs and waits for in-flight runs to finish.
func (d *Dispatcher) Shutdown() {
	close(d.jobs)
	d.wg.Wait()
}

func (d *Dispatcher) process(submissionID string) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("background pipeline run panicked", "submission_id", submissionID, "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	result, err := d.runner.RunPipeline(ctx, submissionID)
	if err != nil {
		if errors.Is(err, services.ErrAlreadyProcessed) {
			d.logger.Info("background run skipped", "submission_id", submissionID, "reason", err)
			return
		}
		d.logger.Error("background pipeline run failed", "submission_id", submissionID, "error", err)
		return
	}
	d.logger.Info("background pipeline run finished", "submission_id", submissionID, "status", result.Status)
}
