package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DLQPrefix namespaces the dead-letter list of each queue: dlq:<queue>.
// Entries are pushed to the head, so index 0 is the latest failure.
const DLQPrefix = "dlq:"

func dlqKey(queue string) string { return DLQPrefix + queue }

// DLQEntry is a dead-lettered job plus why and when it was given up on.
type DLQEntry struct {
	OriginalQueue string          `json:"original_queue"`
	JobType       string          `json:"job_type"`
	Payload       json.RawMessage `json:"payload"`
	Reason        string          `json:"reason"`
	FailedAt      time.Time       `json:"failed_at"`
	Attempts      int             `json:"attempts"`
}

// SendToDLQ dead-letters a job. Failures to write are logged, never returned:
// the caller has already given up on the job.
func SendToDLQ(ctx context.Context, rdb *redis.Client, queue string, jobType string, payload json.RawMessage, reason string, attempts int) {
	entry := DLQEntry{
		OriginalQueue: queue,
		JobType:       jobType,
		Payload:       payload,
		Reason:        reason,
		FailedAt:      time.Now().UTC(),
		Attempts:      attempts,
	}
	data, err := json.Marshal(entry)
	if err == nil {
		err = rdb.LPush(ctx, dlqKey(queue), data).Err()
	}
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Str("job_type", jobType).Msg("dlq: entry lost")
		return
	}
	log.Warn().
		Str("queue", queue).
		Str("job_type", jobType).
		Str("reason", reason).
		Int("attempts", attempts).
		Msg("dlq: job dead-lettered")
}

// DLQLength is the number of dead-lettered jobs of queue.
func DLQLength(ctx context.Context, rdb *redis.Client, queue string) (int64, error) {
	return rdb.LLen(ctx, dlqKey(queue)).Result()
}

// InspectDLQ returns up to limit entries of queue's DLQ, latest first.
// Entries that no longer decode are skipped.
func InspectDLQ(ctx context.Context, rdb *redis.Client, queue string, limit int) ([]DLQEntry, error) {
	if limit <= 0 {
		return []DLQEntry{}, nil
	}
	raws, err := rdb.LRange(ctx, dlqKey(queue), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]DLQEntry, 0, len(raws))
	for _, raw := range raws {
		var e DLQEntry
		if json.Unmarshal([]byte(raw), &e) == nil {
			out = append(out, e)
		}
	}
	return out, nil
}

// RequeueDLQ moves up to limit of queue's oldest dead-lettered jobs back onto
// queue with a fresh attempt count and returns how many it moved. Entries
// without a usable job type stay dead-lettered.
func RequeueDLQ(ctx context.Context, rdb *redis.Client, queue string, limit int) (int, error) {
	moved := 0
	var stuck []string
	defer func() {
		for _, raw := range stuck {
			if err := rdb.RPush(ctx, dlqKey(queue), raw).Err(); err != nil {
				log.Error().Err(err).Str("queue", queue).Msg("dlq: could not restore entry")
			}
		}
	}()

	for moved+len(stuck) < limit {
		raw, err := rdb.RPop(ctx, dlqKey(queue)).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return moved, err
		}
		var e DLQEntry
		if json.Unmarshal([]byte(raw), &e) != nil || e.JobType == "" || e.JobType == "unknown" {
			stuck = append(stuck, raw)
			continue
		}
		encoded, err := json.Marshal(Job{Type: e.JobType, Payload: e.Payload})
		if err != nil {
			stuck = append(stuck, raw)
			continue
		}
		if err := rdb.LPush(ctx, queue, encoded).Err(); err != nil {
			stuck = append(stuck, raw)
			return moved, fmt.Errorf("requeue %s job: %w", e.JobType, err)
		}
		moved++
	}
	if moved > 0 {
		log.Info().Str("queue", queue).Int("requeued", moved).Msg("dlq: jobs requeued")
	}
	return moved, nil
}
