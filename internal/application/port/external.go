package port

import "context"

// RunDigest is the plain-text view of a run handed to external services
type RunDigest struct {
	RunID          string
	CatalogVersion string
	Records        int
	Flagged        int
	Text           string
	Narrative      string
}

// Notifier delivers run digests to reviewers
type Notifier interface {
	NotifyRun(ctx context.Context, digest RunDigest) error
}

// Narrator writes a short reviewer-facing narrative for a run
type Narrator interface {
	Narrate(ctx context.Context, digest RunDigest) (string, error)
}
