package crawler

import (
	"context"
	"io"
	"time"
)

// DocumentStore persists raw documents keyed by their seed id.
//
// Put must be all-or-nothing: a failed or canceled write leaves no document
// visible to Exists or Get.
type DocumentStore interface {
	Exists(ctx context.Context, id int) (bool, error)
	Put(ctx context.Context, id int, body io.Reader) (string, error)
	Get(ctx context.Context, id int) ([]byte, error)
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Queue provides multiple-consumer dequeue semantics for crawl work.
type Queue interface {
	Enqueue(ctx context.Context, item WorkItem) error
	Dequeue(ctx context.Context) (WorkItem, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// Publisher emits notifications to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
