package port

import "context"

// ReportArchive stores rendered reports by name
type ReportArchive interface {
	Save(ctx context.Context, name string, content []byte) error
	Read(ctx context.Context, name string) ([]byte, error)
	Exists(ctx context.Context, name string) bool
}
