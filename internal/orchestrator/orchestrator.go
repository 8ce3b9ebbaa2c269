// Package orchestrator drives operations through the generation gateway,
// chaining every extension off the clip produced before it.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"longvideo/internal/archive"
	"longvideo/internal/domain"
	"longvideo/internal/infra"
	"longvideo/internal/infra/metrics"
	"longvideo/internal/providers/video"
	"longvideo/internal/segment"
	"longvideo/internal/storage"
)

const (
	defaultPollInterval   = 10 * time.Second
	defaultSegmentTimeout = 15 * time.Minute
	archiveTimeout        = 10 * time.Second
)

// Registry is the subset of the operation store the orchestrator writes to.
type Registry interface {
	Create(op domain.Operation) (string, error)
	Get(id string) (domain.Operation, error)
	Mutate(id string, fn func(op *domain.Operation)) error
}

// ArtifactStore persists downloaded clips.
type ArtifactStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	Remove(path string) error
}

// Options configures an Orchestrator.
type Options struct {
	Gateway  video.Gateway
	Registry Registry
	Store    ArtifactStore
	// Archive is optional; terminal operations are recorded there when set.
	Archive        archive.Recorder
	Logger         *infra.Logger
	PollInterval   time.Duration
	SegmentTimeout time.Duration
	Now            func() time.Time
}

// Orchestrator owns one background goroutine per running operation. It is
// the only writer of an operation's segment fields while it is processing.
type Orchestrator struct {
	gateway        video.Gateway
	registry       Registry
	store          ArtifactStore
	archive        archive.Recorder
	logger         *infra.Logger
	pollInterval   time.Duration
	segmentTimeout time.Duration
	now            func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs an Orchestrator whose background work is bound to ctx.
func New(ctx context.Context, opts Options) (*Orchestrator, error) {
	if opts.Gateway == nil {
		return nil, errors.New("orchestrator: gateway is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("orchestrator: registry is required")
	}
	if opts.Store == nil {
		return nil, errors.New("orchestrator: artifact store is required")
	}
	o := &Orchestrator{
		gateway:        opts.Gateway,
		registry:       opts.Registry,
		store:          opts.Store,
		archive:        opts.Archive,
		logger:         opts.Logger,
		pollInterval:   opts.PollInterval,
		segmentTimeout: opts.SegmentTimeout,
		now:            opts.Now,
	}
	if o.logger == nil {
		l := zerolog.New(io.Discard)
		o.logger = &l
	}
	if o.pollInterval <= 0 {
		o.pollInterval = defaultPollInterval
	}
	if o.segmentTimeout <= 0 {
		o.segmentTimeout = defaultSegmentTimeout
	}
	if o.now == nil {
		o.now = time.Now
	}
	o.ctx, o.cancel = context.WithCancel(ctx)
	return o, nil
}

// Submit stores op and starts orchestrating it in the background. It returns
// as soon as the operation is registered.
func (o *Orchestrator) Submit(op domain.Operation) (string, error) {
	op.Status = domain.StatusProcessing
	op.CreatedAt = o.now()
	id, err := o.registry.Create(op)
	if err != nil {
		return "", err
	}
	o.Start(id)
	return id, nil
}

// Start runs the operation with the given id on its own goroutine.
func (o *Orchestrator) Start(id string) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.Run(o.ctx, id); err != nil {
			o.logger.Warn().Err(err).Str("operation_id", id).Msg("orchestrator: operation failed")
		}
	}()
}

// Wait blocks until every started operation has reached a terminal state.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Shutdown cancels in-flight operations and waits for their goroutines, or
// until ctx is done. Cancelled operations end in the error state.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.cancel()
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run orchestrates the operation synchronously. Every return path leaves the
// record in a terminal state.
func (o *Orchestrator) Run(ctx context.Context, id string) (err error) {
	op, err := o.registry.Get(id)
	if err != nil {
		return err
	}

	metrics.ActiveOperations.Inc()
	defer metrics.ActiveOperations.Dec()

	log := o.logger.With().Str("operation_id", id).Str("kind", string(op.Kind)).Logger()
	started := o.now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("orchestrator: panic: %v", r)
			o.fail(id, err.Error())
		}
		o.finish(id, &log, started)
	}()

	plan := op.Segments()
	if len(plan) == 0 {
		o.fail(id, "empty segment plan")
		return fmt.Errorf("operation %s: %w: empty segment plan", id, domain.ErrInvalidRequest)
	}

	log.Info().Ints("plan", plan).Msg("orchestrator: starting")

	var source *video.Media
	for i, duration := range plan {
		if err := o.registry.Mutate(id, func(rec *domain.Operation) {
			if rec.Long != nil {
				rec.Long.CurrentSegment = i
			}
		}); err != nil {
			return err
		}

		job := video.Job{
			Prompt:          promptFor(op, i, len(plan)),
			Config:          op.Config,
			DurationSeconds: duration,
			Source:          source,
			RequestID:       id,
		}
		media, err := o.runSegment(ctx, id, op.Kind, i, len(plan), job)
		if err != nil {
			metrics.SegmentsTotal.WithLabelValues("failed").Inc()
			log.Error().Err(err).Int("segment", i).Msg("orchestrator: segment failed")
			o.fail(id, err.Error())
			return fmt.Errorf("operation %s segment %d: %w: %v", id, i, domain.ErrGatewayFailure, err)
		}
		metrics.SegmentsTotal.WithLabelValues("completed").Inc()
		log.Info().Int("segment", i).Str("path", media.Path).Msg("orchestrator: segment completed")
		source = media
	}
	return nil
}

// runSegment produces one clip and records it on the operation. The returned
// media is the source of the next extension.
func (o *Orchestrator) runSegment(ctx context.Context, id string, kind domain.Kind, index, total int, job video.Job) (*video.Media, error) {
	stage := o.now()
	handle, err := o.gateway.Submit(ctx, job)
	observeStage("submit", o.now().Sub(stage))
	if err != nil {
		return nil, err
	}

	stage = o.now()
	result, err := o.await(ctx, handle)
	observeStage("poll", o.now().Sub(stage))
	if err != nil {
		return nil, err
	}

	stage = o.now()
	data, err := o.gateway.Download(ctx, result)
	observeStage("download", o.now().Sub(stage))
	if err != nil {
		return nil, err
	}

	key := storage.SegmentKey(id, index)
	if kind == domain.KindSingle {
		key = storage.SingleKey(id)
	}
	stage = o.now()
	path, err := o.store.Write(ctx, key, data)
	observeStage("write", o.now().Sub(stage))
	if err != nil {
		return nil, err
	}

	last := index == total-1
	err = o.registry.Mutate(id, func(rec *domain.Operation) {
		rec.ArtifactPath = path
		if rec.Long != nil {
			rec.Long.CompletedSegments = append(rec.Long.CompletedSegments, index)
			rec.Long.Artifacts = append(rec.Long.Artifacts, path)
			rec.Long.Progress = max(rec.Long.Progress, progress(index, total))
		}
		if last {
			now := o.now()
			rec.Status = domain.StatusCompleted
			rec.CompletedAt = &now
			if rec.Long != nil {
				rec.Long.CurrentSegment = total
				rec.Long.Progress = 100
			}
		}
	})
	if err != nil {
		_ = o.store.Remove(path)
		return nil, err
	}
	return &video.Media{URI: result.URI, Path: path, MimeType: result.MimeType}, nil
}

// await polls handle at a fixed interval until the job is done, it fails,
// or the segment timeout elapses.
func (o *Orchestrator) await(ctx context.Context, handle video.Handle) (video.Result, error) {
	waitCtx, cancel := context.WithTimeout(ctx, o.segmentTimeout)
	defer cancel()

	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return video.Result{}, ctx.Err()
			}
			return video.Result{}, fmt.Errorf("segment timed out after %s", o.segmentTimeout)
		case <-ticker.C:
		}

		res, err := o.gateway.Poll(waitCtx, handle)
		if err != nil {
			return video.Result{}, err
		}
		if !res.Done {
			continue
		}
		if res.Failure != "" {
			return video.Result{}, errors.New(res.Failure)
		}
		if res.Result == nil {
			return video.Result{}, errors.New("generation finished without a result")
		}
		return *res.Result, nil
	}
}

func (o *Orchestrator) fail(id, detail string) {
	err := o.registry.Mutate(id, func(rec *domain.Operation) {
		if rec.Status.IsTerminal() {
			return
		}
		now := o.now()
		rec.Status = domain.StatusError
		rec.ErrorDetail = detail
		rec.CompletedAt = &now
	})
	if err != nil {
		o.logger.Error().Err(err).Str("operation_id", id).Msg("orchestrator: record failure")
	}
}

// finish guarantees a terminal state, then reports the outcome.
func (o *Orchestrator) finish(id string, log *zerolog.Logger, started time.Time) {
	op, err := o.registry.Get(id)
	if err != nil {
		log.Error().Err(err).Msg("orchestrator: operation vanished")
		return
	}
	if !op.Status.IsTerminal() {
		o.fail(id, "orchestration stopped before reaching a terminal state")
		if op, err = o.registry.Get(id); err != nil {
			return
		}
	}

	metrics.OperationsTotal.WithLabelValues(string(op.Kind), string(op.Status)).Inc()
	log.Info().
		Str("status", string(op.Status)).
		Dur("duration", o.now().Sub(started)).
		Msg("orchestrator: finished")

	if o.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	if err := o.archive.Record(ctx, op); err != nil {
		log.Warn().Err(err).Msg("orchestrator: archive operation")
	}
}

func promptFor(op domain.Operation, index, total int) string {
	if op.Long == nil {
		return op.Prompt
	}
	return segment.PromptFor(op.Prompt, op.Long.SegmentPrompts, index, total)
}

// progress is the percentage after segment index completes, held below 100
// until the operation itself completes.
func progress(index, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(100 * float64(index+1) / float64(total)))
	if index < total-1 && p >= 100 {
		p = 99
	}
	return p
}

func observeStage(stage string, d time.Duration) {
	metrics.SegmentStageDuration.WithLabelValues(stage).Observe(d.Seconds())
}
