package worker

import (
	"context"

	"carmen/internal/dto"

	"github.com/redis/go-redis/v9"
)

// backlogThreshold is the pending depth above which a queue reports "backlogged".
const backlogThreshold = 100

// QueueByName resolves a queue by its full key or its job type
// ("bulk_assignment", "email").
func QueueByName(name string) (string, bool) {
	for _, q := range Queues {
		if name == q || "jobs:"+name == q {
			return q, true
		}
	}
	return "", false
}

// QueueStats reports depth, in-flight and dead-lettered counts per queue,
// with the latest dead-lettered failure when there is one.
func QueueStats(ctx context.Context, rdb *redis.Client) ([]dto.QueueStatus, error) {
	out := make([]dto.QueueStatus, 0, len(Queues))
	for _, q := range Queues {
		pending, err := rdb.LLen(ctx, q).Result()
		if err != nil {
			return nil, err
		}
		processing, err := rdb.Get(ctx, processingPrefix+q).Int64()
		if err != nil && err != redis.Nil {
			return nil, err
		}
		if processing < 0 {
			processing = 0
		}
		failed, err := DLQLength(ctx, rdb, q)
		if err != nil {
			return nil, err
		}

		var last *dto.QueueFailure
		if failed > 0 {
			entries, err := InspectDLQ(ctx, rdb, q, 1)
			if err != nil {
				return nil, err
			}
			if len(entries) == 1 {
				e := entries[0]
				last = &dto.QueueFailure{JobType: e.JobType, Reason: e.Reason, Attempts: e.Attempts, FailedAt: e.FailedAt}
			}
		}

		status := "idle"
		switch {
		case pending > backlogThreshold:
			status = "backlogged"
		case pending > 0 || processing > 0:
			status = "active"
		}
		out = append(out, dto.QueueStatus{
			Name:            q,
			PendingCount:    pending,
			ProcessingCount: processing,
			FailedCount:     failed,
			Status:          status,
			LastFailure:     last,
		})
	}
	return out, nil
}
