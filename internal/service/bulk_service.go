package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carmen/internal/dto"
	"carmen/internal/metrics"
	"carmen/internal/pricing"
	"carmen/internal/worker"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// BulkService is the bulk assignment coordinator.
type BulkService interface {
	BulkAssign(ctx context.Context, req dto.BulkAssignRequest) (*dto.BulkAssignmentResult, error)
	EnqueueBulk(ctx context.Context, req dto.BulkAssignRequest) (*dto.BulkJobResponse, error)
	JobStatus(ctx context.Context, jobID string) (*dto.BulkJobResponse, error)
	QueueStatus(ctx context.Context) (*dto.QueueStatusResponse, error)
	// RequeueFailed moves dead-lettered jobs of the named queue back for another run.
	RequeueFailed(ctx context.Context, queue string, req dto.RequeueRequest) (*dto.RequeueResponse, error)
}

// BulkConfig bounds bulk batches.
type BulkConfig struct {
	Concurrency int
	MaxItems    int
	ResultTTL   time.Duration
}

type bulkService struct {
	assign AssignmentService
	jobs   JobQueue
	rdb    *redis.Client
	cfg    BulkConfig
}

func NewBulkService(assign AssignmentService, jobs JobQueue, rdb *redis.Client, cfg BulkConfig) BulkService {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &bulkService{assign: assign, jobs: jobs, rdb: rdb, cfg: cfg}
}

var _ worker.BulkRunner = (*bulkService)(nil)

func (s *bulkService) validate(req dto.BulkAssignRequest) error {
	verr := &pricing.ValidationError{}
	switch {
	case len(req.Items) == 0:
		verr.Add("items", "items must contain at least one request")
	case s.cfg.MaxItems > 0 && len(req.Items) > s.cfg.MaxItems:
		verr.Add("items", fmt.Sprintf("items must contain at most %d requests", s.cfg.MaxItems))
	}
	return verr.OrNil()
}

// BulkAssign prices every item with bounded parallelism. Item failures are
// recorded in place and never stop the batch. When ctx is cancelled, items
// already finished keep their outcome and the rest are reported as cancelled.
func (s *bulkService) BulkAssign(ctx context.Context, req dto.BulkAssignRequest) (*dto.BulkAssignmentResult, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	n := len(req.Items)
	results := make([]dto.BulkItemResult, n)
	done := make([]bool, n)

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i := range req.Items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			item := req.Items[i]
			resp, err := s.assign.AssignPrice(ctx, item)
			if err != nil && ctx.Err() != nil && isCancellation(err) {
				return nil
			}
			results[i] = itemResult(i, item.ProductID, resp, err)
			done[i] = true
			return nil
		})
	}
	_ = g.Wait()

	out := &dto.BulkAssignmentResult{
		Results:     results,
		Assignments: []dto.PriceAssignmentResponse{},
		Errors:      []dto.BulkItemError{},
		Cancelled:   ctx.Err() != nil,
	}
	for i := range results {
		if !done[i] {
			results[i] = dto.BulkItemResult{
				Index: i,
				Error: &dto.BulkItemError{
					Index:     i,
					ProductID: req.Items[i].ProductID,
					Code:      pricing.CodeCancelled,
					Message:   "cancelled before completion",
				},
			}
			metrics.BulkItems.WithLabelValues("cancelled").Inc()
		}
		if r := results[i]; r.Success {
			out.Assignments = append(out.Assignments, *r.Assignment)
		} else {
			out.Errors = append(out.Errors, *r.Error)
		}
	}
	out.Summary = dto.BulkSummary{
		TotalItems:            n,
		SuccessfulAssignments: len(out.Assignments),
		FailedAssignments:     len(out.Errors),
	}

	log.Info().
		Int("total", n).
		Int("succeeded", out.Summary.SuccessfulAssignments).
		Int("failed", out.Summary.FailedAssignments).
		Bool("cancelled", out.Cancelled).
		Msg("bulk assignment finished")
	return out, nil
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func itemResult(i int, productID string, resp *dto.PriceAssignmentResponse, err error) dto.BulkItemResult {
	if err == nil {
		metrics.BulkItems.WithLabelValues("success").Inc()
		return dto.BulkItemResult{Index: i, Success: true, Assignment: resp}
	}
	metrics.BulkItems.WithLabelValues("failed").Inc()
	code := pricing.ErrorCode(err)
	msg := err.Error()
	if code == pricing.CodeInternal {
		log.Error().Err(err).Int("index", i).Str("product_id", productID).Msg("bulk item failed")
		msg = "internal error"
	}
	return dto.BulkItemResult{
		Index: i,
		Error: &dto.BulkItemError{Index: i, ProductID: productID, Code: code, Message: msg},
	}
}

// EnqueueBulk queues the batch for the bulk worker and returns its job id.
func (s *bulkService) EnqueueBulk(ctx context.Context, req dto.BulkAssignRequest) (*dto.BulkJobResponse, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	jobID := uuid.NewString()
	payload := worker.BulkJobPayload{JobID: jobID, Request: req}
	if err := s.jobs.EnqueueBulk(ctx, payload, s.cfg.ResultTTL); err != nil {
		return nil, storeErr("enqueue bulk job", err)
	}
	log.Info().Str("job_id", jobID).Int("items", len(req.Items)).Msg("bulk assignment queued")
	return &dto.BulkJobResponse{JobID: jobID, Status: worker.BulkStatusQueued}, nil
}

func (s *bulkService) JobStatus(ctx context.Context, jobID string) (*dto.BulkJobResponse, error) {
	resp, err := worker.LoadBulkJob(ctx, s.rdb, jobID)
	if err != nil {
		return nil, storeErr("load bulk job", err)
	}
	return resp, nil
}

func (s *bulkService) QueueStatus(ctx context.Context) (*dto.QueueStatusResponse, error) {
	queues, err := worker.QueueStats(ctx, s.rdb)
	if err != nil {
		return nil, storeErr("queue status", err)
	}
	return &dto.QueueStatusResponse{Queues: queues}, nil
}

const defaultRequeueLimit = 100

func (s *bulkService) RequeueFailed(ctx context.Context, queue string, req dto.RequeueRequest) (*dto.RequeueResponse, error) {
	name, ok := worker.QueueByName(queue)
	if !ok {
		return nil, &pricing.NotFoundError{Resource: "queue", ID: queue}
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultRequeueLimit
	}
	moved, err := worker.RequeueDLQ(ctx, s.rdb, name, limit)
	if err != nil {
		return nil, storeErr("requeue dead-lettered jobs", err)
	}
	return &dto.RequeueResponse{Queue: name, Requeued: moved}, nil
}
