package crawler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by DocumentStore.Get when no document exists for an id.
	ErrNotFound = errors.New("document not found")
	// ErrQueueClosed is returned by Queue.Dequeue once the queue is closed and drained.
	ErrQueueClosed = errors.New("queue closed")
)

// WorkItem is one (url, id) pair waiting to be fetched.
type WorkItem struct {
	ID  int
	URL string
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	ID      int
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	Duration    time.Duration
}

// Failure records a single dropped work item.
type Failure struct {
	ID    int    `json:"id"`
	URL   string `json:"url"`
	Cause string `json:"cause"`
}

// DocumentKey derives the storage key for a document id.
func DocumentKey(prefix string, id int) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%d.html", id)
	}
	return fmt.Sprintf("%s/%d.html", prefix, id)
}
