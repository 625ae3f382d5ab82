package downloader

import (
	"context"
)

// Fetcher downloads a remote resource into a local file.
type Fetcher interface {
	// Fetch streams url into dest and returns the number of bytes written.
	// dest does not exist after a failed fetch.
	Fetch(ctx context.Context, url, dest string) (int64, error)
}
