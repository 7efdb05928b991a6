package imagegen

import (
	"context"
	"time"

	"wanx/internal/domain"
)

// Downloader retrieves the raw bytes behind an artifact URL.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// JobClient is the remote side of a run: one submission, one wait, and the
// artifact downloads.
type JobClient interface {
	Downloader
	Submit(ctx context.Context, credential string, req domain.GenerationRequest) (domain.JobHandle, error)
	WaitForTerminal(ctx context.Context, credential string, handle domain.JobHandle, deadline time.Duration) (*domain.JobStatus, error)
}

// Reporter receives progress events for user-facing output.
type Reporter interface {
	Submitted(handle domain.JobHandle)
	Completed(artifacts int)
	Saved(path string)
}

// Result describes a finished run.
type Result struct {
	RunID  string
	Handle domain.JobHandle
	Files  []string
}

type nopReporter struct{}

func (nopReporter) Submitted(domain.JobHandle) {}
func (nopReporter) Completed(int)              {}
func (nopReporter) Saved(string)               {}
