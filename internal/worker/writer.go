package worker

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"leadgen/internal/metrics"
	"leadgen/internal/model"
	"leadgen/internal/storage"
)

var ErrWriterStopped = errors.New("serial writer stopped")

type insertResult struct {
	created bool
	err     error
}

type insertJob struct {
	ctx   context.Context
	lead  *model.Lead
	reply chan insertResult
}

// SerialWriter funnels every Insert through one goroutine so a
// read-modify-write store never sees two inserts at once.
type SerialWriter struct {
	store  storage.LeadStore
	jobs   chan insertJob
	stopCh chan struct{}
	doneCh chan struct{}
	log    logrus.FieldLogger
}

func NewSerialWriter(store storage.LeadStore, queueSize int, log logrus.FieldLogger) *SerialWriter {
	if queueSize < 0 {
		queueSize = 0
	}
	return &SerialWriter{
		store:  store,
		jobs:   make(chan insertJob, queueSize),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		log:    log,
	}
}

var _ storage.LeadStore = (*SerialWriter)(nil)

func (w *SerialWriter) Start() {
	w.log.Info("serial writer started")
	go w.loop()
}

// Stop rejects queued and future inserts and waits for the loop to exit.
func (w *SerialWriter) Stop() {
	close(w.stopCh)
	<-w.doneCh
	w.log.Info("serial writer stopped")
}

func (w *SerialWriter) loop() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			w.drain()
			return
		case job := <-w.jobs:
			metrics.WriterQueueDepth.Dec()
			job.reply <- w.handle(job)
		}
	}
}

func (w *SerialWriter) handle(job insertJob) insertResult {
	if err := job.ctx.Err(); err != nil {
		metrics.WriterAppends.WithLabelValues("cancelled").Inc()
		return insertResult{err: err}
	}

	// Started writes run to completion even if the caller goes away.
	created, err := w.store.Insert(context.WithoutCancel(job.ctx), job.lead)
	switch {
	case err != nil:
		metrics.WriterAppends.WithLabelValues("error").Inc()
	case created:
		metrics.WriterAppends.WithLabelValues("created").Inc()
	default:
		metrics.WriterAppends.WithLabelValues("duplicate").Inc()
	}
	return insertResult{created: created, err: err}
}

func (w *SerialWriter) drain() {
	for {
		select {
		case job := <-w.jobs:
			metrics.WriterQueueDepth.Dec()
			job.reply <- insertResult{err: ErrWriterStopped}
		default:
			return
		}
	}
}

func (w *SerialWriter) Insert(ctx context.Context, lead *model.Lead) (bool, error) {
	job := insertJob{ctx: ctx, lead: lead, reply: make(chan insertResult, 1)}

	select {
	case <-w.stopCh:
		return false, ErrWriterStopped
	default:
	}

	metrics.WriterQueueDepth.Inc()
	select {
	case w.jobs <- job:
	case <-w.stopCh:
		metrics.WriterQueueDepth.Dec()
		return false, ErrWriterStopped
	case <-ctx.Done():
		metrics.WriterQueueDepth.Dec()
		return false, ctx.Err()
	}

	// A queued job always gets a reply from handle or drain. handle skips
	// jobs whose ctx is already done, so the reply says whether it was written.
	return w.await(job)
}

func (w *SerialWriter) await(job insertJob) (bool, error) {
	select {
	case res := <-job.reply:
		return res.created, res.err
	case <-w.doneCh:
		// The loop may have answered just before exiting.
		select {
		case res := <-job.reply:
			return res.created, res.err
		default:
			return false, ErrWriterStopped
		}
	}
}

// FindByEmail reads straight from the store; writes replace the
// underlying data atomically.
func (w *SerialWriter) FindByEmail(ctx context.Context, email string) (*model.Lead, error) {
	return w.store.FindByEmail(ctx, email)
}
