package inventory

import "context"

// CommitHandler receives commit events, for example to invalidate cached
// reports.
type CommitHandler interface {
	HandleDocumentCommitted(ctx context.Context, evt DocumentCommittedEvent) error
}

// ReportInvalidator bumps the report cache version on every commit. Bump
// may act directly on the cache or enqueue a background task.
type ReportInvalidator struct {
	Bump func(ctx context.Context) error
}

// HandleDocumentCommitted implements CommitHandler.
func (r ReportInvalidator) HandleDocumentCommitted(ctx context.Context, _ DocumentCommittedEvent) error {
	if r.Bump == nil {
		return nil
	}
	return r.Bump(ctx)
}
