package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"carmen/internal/dto"
	"carmen/internal/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	result *dto.BulkAssignmentResult
	err    error
	calls  int
	after  func()
}

func (r *stubRunner) BulkAssign(context.Context, dto.BulkAssignRequest) (*dto.BulkAssignmentResult, error) {
	r.calls++
	if r.after != nil {
		r.after()
	}
	return r.result, r.err
}

func bulkPayload(t *testing.T, jobID string) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(BulkJobPayload{JobID: jobID, Request: dto.BulkAssignRequest{Items: []dto.AssignPriceRequest{{ProductID: "PROD-001"}}}})
	require.NoError(t, err)
	return b
}

func TestBulkWorker_StoresCompletedResult(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	runner := &stubRunner{result: &dto.BulkAssignmentResult{
		Summary: dto.BulkSummary{TotalItems: 1, SuccessfulAssignments: 1},
	}}

	require.NoError(t, NewBulkWorker(runner, rdb, time.Hour).Process(ctx, bulkPayload(t, "job-1")))

	job, err := LoadBulkJob(ctx, rdb, "job-1")
	require.NoError(t, err)
	assert.Equal(t, BulkStatusCompleted, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, 1, job.Result.Summary.SuccessfulAssignments)
	assert.Empty(t, job.Error)
}

func TestBulkWorker_RejectedBatchFailsWithoutRetry(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	verr := &pricing.ValidationError{}
	verr.Add("items", "items must contain at most 500 requests")

	err := NewBulkWorker(&stubRunner{err: verr}, rdb, time.Hour).Process(ctx, bulkPayload(t, "job-2"))
	require.NoError(t, err)

	job, err := LoadBulkJob(ctx, rdb, "job-2")
	require.NoError(t, err)
	assert.Equal(t, BulkStatusFailed, job.Status)
	assert.Contains(t, job.Error, "at most 500")
}

func TestBulkWorker_RunnerErrorFailsJobWithoutRerun(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	runner := &stubRunner{err: errors.New("connection reset")}
	w := NewBulkWorker(runner, rdb, time.Hour)

	require.NoError(t, w.Process(ctx, bulkPayload(t, "job-3")))
	job, err := LoadBulkJob(ctx, rdb, "job-3")
	require.NoError(t, err)
	assert.Equal(t, BulkStatusFailed, job.Status)
	assert.Equal(t, "connection reset", job.Error)

	// a second delivery of the same job does not run the batch again
	require.NoError(t, w.Process(ctx, bulkPayload(t, "job-3")))
	assert.Equal(t, 1, runner.calls)
}

func TestBulkWorker_ResultWriteFailureNeverRerunsBatch(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()
	runner := &stubRunner{
		result: &dto.BulkAssignmentResult{Summary: dto.BulkSummary{TotalItems: 1, SuccessfulAssignments: 1}},
		after:  func() { mr.SetError("ERR result store unavailable") },
	}
	w := NewBulkWorker(runner, rdb, time.Hour)
	w.backoff = time.Millisecond

	require.NoError(t, w.Process(ctx, bulkPayload(t, "job-4")))
	assert.Equal(t, 1, runner.calls)

	mr.SetError("")
	require.NoError(t, w.Process(ctx, bulkPayload(t, "job-4")))
	assert.Equal(t, 1, runner.calls)

	job, err := LoadBulkJob(ctx, rdb, "job-4")
	require.NoError(t, err)
	assert.Equal(t, BulkStatusFailed, job.Status)
	assert.Contains(t, job.Error, "interrupted")
}

func TestBulkWorker_CancelledPoolStillStoresPartialResult(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	runner := &stubRunner{
		result: &dto.BulkAssignmentResult{Cancelled: true, Summary: dto.BulkSummary{TotalItems: 2, SuccessfulAssignments: 1, FailedAssignments: 1}},
		after:  cancel,
	}

	require.NoError(t, NewBulkWorker(runner, rdb, time.Hour).Process(ctx, bulkPayload(t, "job-5")))

	job, err := LoadBulkJob(context.Background(), rdb, "job-5")
	require.NoError(t, err)
	assert.Equal(t, BulkStatusCompleted, job.Status)
	require.NotNil(t, job.Result)
	assert.True(t, job.Result.Cancelled)
}

func TestBulkWorker_ClaimFailureIsRetried(t *testing.T) {
	mr, rdb := newTestRedis(t)
	runner := &stubRunner{}
	mr.SetError("ERR redis unavailable")

	err := NewBulkWorker(runner, rdb, time.Hour).Process(context.Background(), bulkPayload(t, "job-6"))
	assert.Error(t, err)
	assert.Zero(t, runner.calls)
}

func TestBulkWorker_DropsBadPayload(t *testing.T) {
	_, rdb := newTestRedis(t)
	runner := &stubRunner{}
	assert.NoError(t, NewBulkWorker(runner, rdb, time.Hour).Process(context.Background(), json.RawMessage(`{"request":{}}`)))
	assert.Zero(t, runner.calls)
}

func TestLoadBulkJob_UnknownIsNotFound(t *testing.T) {
	_, rdb := newTestRedis(t)
	_, err := LoadBulkJob(context.Background(), rdb, "nope")
	var nf *pricing.NotFoundError
	assert.True(t, errors.As(err, &nf))
}
