package audit

import "context"

type Repository interface {
	// Append sets l.HashChain from the newest stored row and inserts l.
	Append(ctx context.Context, l *Log) error
	// List returns entries newest first.
	List(ctx context.Context, f Filter, limit, offset int) ([]*Log, int, error)
	// Walk calls fn for every entry oldest first until fn returns false.
	Walk(ctx context.Context, fn func(*Log) bool) error
}
