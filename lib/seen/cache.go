// Package seen is an advisory record of items already delivered per source.
// Checkpoints stay authoritative; a cache miss or failure only means an
// item may be delivered again.
package seen

import "context"

type Cache interface {
	Seen(ctx context.Context, source, id string) bool
	MarkSeen(ctx context.Context, source, id string)
}

// Noop never remembers anything.
type Noop struct{}

func (Noop) Seen(context.Context, string, string) bool { return false }

func (Noop) MarkSeen(context.Context, string, string) {}
