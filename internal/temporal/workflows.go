// Package temporal retries document indexing in the background. When the
// vector index is unreachable during an upload or a chat turn, the document
// stays unprocessed and a reindex workflow picks it up once the store is
// back.
package temporal

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// ReindexInput identifies one document to (re)index.
type ReindexInput struct {
	UserID string
	FileID string
}

// ReindexOutput reports what the indexing activity wrote.
type ReindexOutput struct {
	Chunks int
	NoText bool
}

// ReindexWorkflow extracts, chunks and upserts one document. Chunk IDs are
// deterministic, so a retry after a partial write overwrites instead of
// duplicating.
func ReindexWorkflow(ctx workflow.Context, in ReindexInput) (*ReindexOutput, error) {
	opts := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    10 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Minute,
			MaximumAttempts:    10,
			// Documents with no extractable text never become indexable.
			NonRetryableErrorTypes: []string{ErrTypeNoText},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, opts)

	var out ReindexOutput
	if err := workflow.ExecuteActivity(ctx, "Reindex", in).Get(ctx, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReindexWorkflowID derives a stable workflow ID so concurrent chat turns
// referencing the same unprocessed file collapse into one execution.
func ReindexWorkflowID(userID, fileID string) string {
	return "reindex_" + userID + "_" + fileID
}
