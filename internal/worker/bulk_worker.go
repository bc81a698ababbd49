package worker

// Runs asynchronous bulk assignment batches from QueueBulkAssignment and
// keeps their status and result in Redis for the polling endpoint.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"carmen/internal/dto"
	"carmen/internal/pricing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	BulkStatusQueued    = "queued"
	BulkStatusRunning   = "running"
	BulkStatusCompleted = "completed"
	BulkStatusFailed    = "failed"
)

func bulkStatusKey(id string) string { return "bulk:status:" + id }
func bulkResultKey(id string) string { return "bulk:result:" + id }
func bulkErrorKey(id string) string  { return "bulk:error:" + id }
func bulkClaimKey(id string) string  { return "bulk:claim:" + id }

// resultWriteAttempts bounds how often a finished batch's result write is retried.
const resultWriteAttempts = 3

// errBatchInterrupted marks a job whose earlier run never stored a result.
var errBatchInterrupted = errors.New("batch was interrupted before its result was stored; resubmit the items that are missing")

// BulkJobPayload is the job envelope sent to QueueBulkAssignment.
type BulkJobPayload struct {
	JobID   string                `json:"job_id"`
	Request dto.BulkAssignRequest `json:"request"`
}

// BulkRunner runs a batch synchronously; the bulk service satisfies it.
type BulkRunner interface {
	BulkAssign(ctx context.Context, req dto.BulkAssignRequest) (*dto.BulkAssignmentResult, error)
}

// BulkWorker processes queued bulk batches.
type BulkWorker struct {
	runner  BulkRunner
	rdb     *redis.Client
	ttl     time.Duration
	backoff time.Duration
}

func NewBulkWorker(runner BulkRunner, rdb *redis.Client, ttl time.Duration) *BulkWorker {
	return &BulkWorker{runner: runner, rdb: rdb, ttl: ttl, backoff: 250 * time.Millisecond}
}

// Process runs the batch at most once per job id. Items save their own
// assignments, so a claimed job is never returned for retry; a redelivered
// claimed job is resolved from what the first run stored.
func (w *BulkWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload BulkJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.JobID == "" {
		log.Error().Err(err).Msg("bulk_worker: invalid payload")
		return nil
	}
	jobID := payload.JobID
	logger := log.With().Str("job_id", jobID).Int("items", len(payload.Request.Items)).Logger()

	claimed, err := w.rdb.SetNX(ctx, bulkClaimKey(jobID), time.Now().UTC().Format(time.RFC3339), w.ttl).Result()
	if err != nil {
		return fmt.Errorf("bulk_worker: claim job %s: %w", jobID, err)
	}
	// results and failures are written even when the pool is shutting down
	storeCtx := context.WithoutCancel(ctx)
	if !claimed {
		status, _ := w.rdb.Get(ctx, bulkStatusKey(jobID)).Result()
		if status != BulkStatusCompleted && status != BulkStatusFailed {
			w.fail(storeCtx, jobID, errBatchInterrupted)
		}
		logger.Warn().Str("status", status).Msg("bulk_worker: job already ran, not running it again")
		return nil
	}

	w.rdb.Set(ctx, bulkStatusKey(jobID), BulkStatusRunning, w.ttl)
	result, err := w.runner.BulkAssign(ctx, payload.Request)
	if err != nil {
		w.fail(storeCtx, jobID, err)
		var ve *pricing.ValidationError
		if errors.As(err, &ve) {
			logger.Warn().Err(err).Msg("bulk_worker: batch rejected")
		} else {
			logger.Error().Err(err).Msg("bulk_worker: batch failed")
		}
		return nil
	}

	if err := w.storeResult(storeCtx, jobID, result); err != nil {
		logger.Error().Err(err).Msg("bulk_worker: result not stored")
		w.fail(storeCtx, jobID, errBatchInterrupted)
		return nil
	}

	logger.Info().
		Int("succeeded", result.Summary.SuccessfulAssignments).
		Int("failed", result.Summary.FailedAssignments).
		Bool("cancelled", result.Cancelled).
		Msg("bulk_worker: batch completed")
	return nil
}

// storeResult writes the result and completed status, retrying the write
// alone with doubling backoff.
func (w *BulkWorker) storeResult(ctx context.Context, jobID string, result *dto.BulkAssignmentResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	for attempt := 0; ; attempt++ {
		pipe := w.rdb.TxPipeline()
		pipe.Set(ctx, bulkResultKey(jobID), data, w.ttl)
		pipe.Set(ctx, bulkStatusKey(jobID), BulkStatusCompleted, w.ttl)
		pipe.Del(ctx, bulkErrorKey(jobID))
		_, err = pipe.Exec(ctx)
		if err == nil || attempt+1 >= resultWriteAttempts {
			return err
		}
		time.Sleep(w.backoff << attempt)
	}
}

func (w *BulkWorker) fail(ctx context.Context, jobID string, err error) {
	pipe := w.rdb.TxPipeline()
	pipe.Set(ctx, bulkStatusKey(jobID), BulkStatusFailed, w.ttl)
	pipe.Set(ctx, bulkErrorKey(jobID), err.Error(), w.ttl)
	if _, pErr := pipe.Exec(ctx); pErr != nil {
		log.Error().Err(pErr).Str("job_id", jobID).Msg("bulk_worker: could not mark job failed")
	}
}

// MarkBulkFailed is the DLQ hook: a job that ran out of attempts is failed.
func MarkBulkFailed(ctx context.Context, rdb *redis.Client, payload json.RawMessage, ttl time.Duration) {
	var p BulkJobPayload
	if json.Unmarshal(payload, &p) != nil || p.JobID == "" {
		return
	}
	rdb.Set(ctx, bulkStatusKey(p.JobID), BulkStatusFailed, ttl)
}

// LoadBulkJob reads a job's status and, once completed, its result.
func LoadBulkJob(ctx context.Context, rdb *redis.Client, jobID string) (*dto.BulkJobResponse, error) {
	status, err := rdb.Get(ctx, bulkStatusKey(jobID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, &pricing.NotFoundError{Resource: "bulk job", ID: jobID}
	}
	if err != nil {
		return nil, err
	}

	resp := &dto.BulkJobResponse{JobID: jobID, Status: status}
	if msg, err := rdb.Get(ctx, bulkErrorKey(jobID)).Result(); err == nil {
		resp.Error = msg
	}
	if status != BulkStatusCompleted {
		return resp, nil
	}
	data, err := rdb.Get(ctx, bulkResultKey(jobID)).Bytes()
	if err != nil {
		return nil, err
	}
	var result dto.BulkAssignmentResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode bulk result: %w", err)
	}
	resp.Result = &result
	return resp, nil
}
