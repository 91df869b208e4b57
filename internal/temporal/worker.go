package temporal

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// StartWorker creates and starts a Temporal worker serving the reindex
// queue.
func StartWorker(c client.Client, taskQueue string, acts *Activities) (worker.Worker, error) {
	w := worker.New(c, taskQueue, worker.Options{})

	w.RegisterWorkflow(ReindexWorkflow)
	w.RegisterActivity(acts.Reindex)

	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("starting worker: %w", err)
	}
	return w, nil
}

// Queue schedules reindex workflows. It implements docs.RetryQueue.
type Queue struct {
	client    client.Client
	taskQueue string
}

// NewQueue wraps a Temporal client as a reindex queue.
func NewQueue(c client.Client, taskQueue string) *Queue {
	return &Queue{client: c, taskQueue: taskQueue}
}

// EnqueueReindex starts (or joins) the reindex workflow for a document.
// The stable workflow ID deduplicates concurrent enqueues for the same
// file.
func (q *Queue) EnqueueReindex(ctx context.Context, userID, fileID string) error {
	_, err := q.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        ReindexWorkflowID(userID, fileID),
		TaskQueue: q.taskQueue,
	}, ReindexWorkflow, ReindexInput{UserID: userID, FileID: fileID})
	if err != nil {
		return fmt.Errorf("starting reindex workflow for %s: %w", fileID, err)
	}
	return nil
}
