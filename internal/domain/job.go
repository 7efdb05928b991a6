package domain

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// JobHandle is the opaque task identifier returned by the provider on submission.
type JobHandle string

func (h JobHandle) String() string { return string(h) }

// JobState enumerates remote task lifecycle states.
type JobState string

const (
	JobStatePending   JobState = "PENDING"
	JobStateRunning   JobState = "RUNNING"
	JobStateSucceeded JobState = "SUCCEEDED"
	JobStateFailed    JobState = "FAILED"
	JobStateUnknown   JobState = "UNKNOWN"
)

// ParseJobState maps a remote status string onto a known state. Anything the
// client does not recognize becomes JobStateUnknown.
func ParseJobState(raw string) JobState {
	switch JobState(strings.ToUpper(strings.TrimSpace(raw))) {
	case JobStatePending:
		return JobStatePending
	case JobStateRunning:
		return JobStateRunning
	case JobStateSucceeded:
		return JobStateSucceeded
	case JobStateFailed:
		return JobStateFailed
	default:
		return JobStateUnknown
	}
}

// IsTerminal reports whether polling should stop at this state.
func (s JobState) IsTerminal() bool {
	return s == JobStateSucceeded || s == JobStateFailed
}

// ArtifactRef points at one generated image that can be downloaded.
type ArtifactRef struct {
	URL string
}

// JobStatus is a single snapshot of a remote task.
type JobStatus struct {
	Handle    JobHandle
	State     JobState
	RawState  string
	Message   string
	Code      string
	RequestID string
	Artifacts []ArtifactRef
}

// ArtifactFilename returns the local file name for the artifact at the given
// 1-based position.
func ArtifactFilename(position int) string {
	return fmt.Sprintf("generated_%d.png", position)
}

// Supported output sizes, in CLI spelling.
var Sizes = []string{"1024x1024", "1440x720", "720x1440"}

// Supported image counts per job.
var Counts = []int{1, 2, 4}

const (
	DefaultSize  = "1024x1024"
	DefaultCount = 1
)

// GenerationRequest is a validated text-to-image request. Build it with
// NewGenerationRequest; fields are not modified afterwards.
type GenerationRequest struct {
	Prompt         string
	NegativePrompt string
	Size           string
	Count          int
	Seed           int
}

// NewGenerationRequest normalizes and validates user input. Size accepts
// either "1024x1024" or the provider's "1024*1024" spelling.
func NewGenerationRequest(prompt, size string, count int, negative string, seed int) (GenerationRequest, error) {
	prompt = strings.TrimSpace(norm.NFC.String(prompt))
	if prompt == "" {
		return GenerationRequest{}, &ValidationError{Field: "prompt", Reason: "must not be empty"}
	}
	size = NormalizeSize(size)
	if size == "" {
		size = DefaultSize
	}
	if !slices.Contains(Sizes, size) {
		return GenerationRequest{}, &ValidationError{
			Field:  "size",
			Reason: fmt.Sprintf("%q not one of %s", size, strings.Join(Sizes, ", ")),
		}
	}
	if count == 0 {
		count = DefaultCount
	}
	if !slices.Contains(Counts, count) {
		return GenerationRequest{}, &ValidationError{
			Field:  "n",
			Reason: fmt.Sprintf("%d not one of %v", count, Counts),
		}
	}
	if seed < 0 {
		return GenerationRequest{}, &ValidationError{Field: "seed", Reason: "must not be negative"}
	}
	return GenerationRequest{
		Prompt:         prompt,
		NegativePrompt: strings.TrimSpace(norm.NFC.String(negative)),
		Size:           size,
		Count:          count,
		Seed:           seed,
	}, nil
}

// WireSize returns the size in the provider's "W*H" spelling.
func (r GenerationRequest) WireSize() string {
	return strings.Replace(r.Size, "x", "*", 1)
}

// NormalizeSize lower-cases a size and converts "W*H" to "WxH".
func NormalizeSize(size string) string {
	size = strings.ToLower(strings.TrimSpace(size))
	return strings.Replace(size, "*", "x", 1)
}
