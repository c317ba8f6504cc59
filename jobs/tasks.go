package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReportsWarmup prebuilds the default reorder and slow-moving reports.
	TaskReportsWarmup = "reports:warmup"
	// TaskReportsCacheBump invalidates every cached report.
	TaskReportsCacheBump = "reports:cache_bump"
)

// WarmupPayload narrows a warmup run to specific stores. An empty list
// warms every store.
type WarmupPayload struct {
	StoreIDs []int64 `json:"store_ids,omitempty"`
}

// CacheBumpPayload records why the cache is being invalidated.
type CacheBumpPayload struct {
	Reason string `json:"reason,omitempty"`
}

// NewWarmupTask constructs a warmup task.
func NewWarmupTask(storeIDs ...int64) (*asynq.Task, error) {
	data, err := json.Marshal(WarmupPayload{StoreIDs: storeIDs})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportsWarmup, data), nil
}

// NewCacheBumpTask constructs a cache bump task.
func NewCacheBumpTask(reason string) (*asynq.Task, error) {
	data, err := json.Marshal(CacheBumpPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportsCacheBump, data, asynq.MaxRetry(5)), nil
}
