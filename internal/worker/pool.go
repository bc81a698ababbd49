package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueBulkAssignment = "jobs:bulk_assignment"
	QueueEmail          = "jobs:email"

	JobTypeBulkAssignment = "bulk_assignment"
	JobTypeEmail          = "email"

	processingPrefix = "processing:"

	// MaxJobAttempts is how many times a job runs before it goes to the DLQ.
	MaxJobAttempts = 3
)

// Queues lists every queue the pool consumes, in BRPOP priority order.
var Queues = []string{QueueBulkAssignment, QueueEmail}

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// Handler processes one job payload. A returned error triggers a retry.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueEmail pushes an email job to Redis.
func (d *Dispatcher) EnqueueEmail(ctx context.Context, payload EmailJobPayload) error {
	return d.enqueue(ctx, QueueEmail, Job{Type: JobTypeEmail}, payload)
}

// EnqueueBulk records the job as queued and pushes it to Redis.
func (d *Dispatcher) EnqueueBulk(ctx context.Context, payload BulkJobPayload, ttl time.Duration) error {
	if err := d.rdb.Set(ctx, bulkStatusKey(payload.JobID), BulkStatusQueued, ttl).Err(); err != nil {
		return err
	}
	return d.enqueue(ctx, QueueBulkAssignment, Job{Type: JobTypeBulkAssignment}, payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue string, job Job, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	job.Payload = data
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// Pool consumes the job queues and routes each job to its handler by type.
type Pool struct {
	rdb       *redis.Client
	handlers  map[string]Handler
	deadHooks map[string]func(ctx context.Context, payload json.RawMessage)

	// pause after a failed dequeue, so an unreachable Redis is not polled in a tight loop
	errorBackoff time.Duration
}

func NewPool(rdb *redis.Client) *Pool {
	return &Pool{
		rdb:          rdb,
		handlers:     make(map[string]Handler),
		deadHooks:    make(map[string]func(context.Context, json.RawMessage)),
		errorBackoff: time.Second,
	}
}

// Handle registers h for jobType. Call before Start.
func (p *Pool) Handle(jobType string, h Handler) {
	p.handlers[jobType] = h
}

// OnDeadLetter registers fn to run when a job of jobType is dead-lettered.
func (p *Pool) OnDeadLetter(jobType string, fn func(ctx context.Context, payload json.RawMessage)) {
	p.deadHooks[jobType] = fn
}

func (p *Pool) deadLetter(ctx context.Context, queue string, job Job, reason string) {
	SendToDLQ(ctx, p.rdb, queue, job.Type, job.Payload, reason, job.Attempts)
	if fn, ok := p.deadHooks[job.Type]; ok {
		fn(ctx, job.Payload)
	}
}

// Start launches numWorkers goroutines consuming every queue.
// Each goroutine blocks on BRPOP, zero CPU when idle.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go p.run(ctx, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func (p *Pool) run(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop, waits up to 5s then loops to check ctx
			result, err := p.rdb.BRPop(ctx, 5*time.Second, Queues...).Result()
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue // timeout or shutting down
			}
			if err != nil {
				log.Warn().Err(err).Int("worker", id).Dur("backoff", p.errorBackoff).Msg("dequeue failed")
				select {
				case <-ctx.Done():
				case <-time.After(p.errorBackoff):
				}
				continue
			}
			if len(result) < 2 {
				continue
			}
			p.process(ctx, result[0], result[1])
		}
	}
}

func (p *Pool) process(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		quoted, _ := json.Marshal(raw)
		SendToDLQ(ctx, p.rdb, queue, "unknown", quoted, "malformed job envelope", 0)
		return
	}
	h, ok := p.handlers[job.Type]
	if !ok {
		SendToDLQ(ctx, p.rdb, queue, job.Type, job.Payload, "no handler for job type", job.Attempts)
		return
	}

	p.rdb.Incr(ctx, processingPrefix+queue)
	err := h(ctx, job.Payload)
	p.rdb.Decr(ctx, processingPrefix+queue)

	if err == nil {
		return
	}
	job.Attempts++
	if job.Attempts >= MaxJobAttempts {
		p.deadLetter(ctx, queue, job, err.Error())
		return
	}
	log.Warn().Str("queue", queue).Str("type", job.Type).Int("attempts", job.Attempts).Err(err).Msg("job failed, requeueing")

	encoded, mErr := json.Marshal(job)
	if mErr != nil {
		log.Error().Err(mErr).Msg("failed to re-encode job")
		return
	}
	// back off before the job becomes visible again; on shutdown requeue at once
	go func() {
		select {
		case <-ctx.Done():
		case <-time.After(retryBackoff(job.Attempts)):
		}
		if err := p.rdb.LPush(context.WithoutCancel(ctx), queue, encoded).Err(); err != nil {
			log.Error().Err(err).Str("queue", queue).Msg("failed to requeue job")
		}
	}()
}

// retryBackoff doubles from 2s per attempt.
func retryBackoff(attempts int) time.Duration {
	return time.Duration(1<<attempts) * time.Second
}
