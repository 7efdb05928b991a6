package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJobState(t *testing.T) {
	tests := []struct {
		raw      string
		expected JobState
	}{
		{"PENDING", JobStatePending},
		{"running", JobStateRunning},
		{" SUCCEEDED ", JobStateSucceeded},
		{"FAILED", JobStateFailed},
		{"UNKNOWN", JobStateUnknown},
		{"SUSPENDED", JobStateUnknown},
		{"", JobStateUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseJobState(tt.raw))
		})
	}
}

func TestJobStateIsTerminal(t *testing.T) {
	assert.True(t, JobStateSucceeded.IsTerminal())
	assert.True(t, JobStateFailed.IsTerminal())
	assert.False(t, JobStatePending.IsTerminal())
	assert.False(t, JobStateRunning.IsTerminal())
	assert.False(t, JobStateUnknown.IsTerminal())
}

func TestNewGenerationRequestDefaults(t *testing.T) {
	req, err := NewGenerationRequest("  a cat on the grass ", "", 0, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "a cat on the grass", req.Prompt)
	assert.Equal(t, DefaultSize, req.Size)
	assert.Equal(t, DefaultCount, req.Count)
	assert.Equal(t, "1024*1024", req.WireSize())
}

func TestNewGenerationRequestAcceptsWireSpelling(t *testing.T) {
	req, err := NewGenerationRequest("cat", "720*1440", 4, " blurry ", 42)
	require.NoError(t, err)
	assert.Equal(t, "720x1440", req.Size)
	assert.Equal(t, "720*1440", req.WireSize())
	assert.Equal(t, 4, req.Count)
	assert.Equal(t, "blurry", req.NegativePrompt)
	assert.Equal(t, 42, req.Seed)
}

func TestNewGenerationRequestNormalizesPrompt(t *testing.T) {
	// "e" followed by a combining acute accent composes to a single rune.
	req, err := NewGenerationRequest("cafe\u0301", "", 1, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", req.Prompt)
}

func TestNewGenerationRequestRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		size   string
		count  int
		seed   int
		field  string
	}{
		{"empty prompt", "   ", "", 1, 0, "prompt"},
		{"unknown size", "cat", "512x512", 1, 0, "size"},
		{"count out of set", "cat", "", 3, 0, "n"},
		{"negative count", "cat", "", -1, 0, "n"},
		{"negative seed", "cat", "", 1, -5, "seed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGenerationRequest(tt.prompt, tt.size, tt.count, "", tt.seed)
			require.Error(t, err)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestArtifactFilename(t *testing.T) {
	assert.Equal(t, "generated_1.png", ArtifactFilename(1))
	assert.Equal(t, "generated_4.png", ArtifactFilename(4))
}

func TestErrorSentinels(t *testing.T) {
	cause := errors.New("connection reset")
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"config", &ConfigError{Key: "DASHSCOPE_API_KEY", Reason: "is required"}, ErrConfig},
		{"network", &NetworkError{Method: "GET", URL: "https://x", Err: cause}, ErrNetwork},
		{"protocol", &ProtocolError{URL: "https://x", Reason: "invalid utf-8"}, ErrProtocol},
		{"submission", &SubmissionError{Status: 200, Raw: "{}"}, ErrSubmissionRejected},
		{"api", &APIError{Status: 400, Code: "InvalidParameter"}, ErrAPI},
		{"job failed", &JobFailedError{Message: "quota exceeded"}, ErrJobFailed},
		{"timeout", &TimeoutError{Handle: "t-1"}, ErrTimeout},
		{"fetch", &FetchError{Index: 2, URL: "https://x", Err: cause}, ErrFetch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
	assert.ErrorIs(t, &FetchError{Err: cause}, cause)
	assert.ErrorIs(t, &NetworkError{Err: cause}, cause)
}

func TestSubmissionErrorMessage(t *testing.T) {
	err := &SubmissionError{Status: 200, Code: "InvalidApiKey", Message: "Invalid API-key provided."}
	assert.Equal(t, "submission rejected: Invalid API-key provided. (InvalidApiKey)", err.Error())

	raw := &SubmissionError{Status: 502, Raw: " bad gateway "}
	assert.Equal(t, "submission rejected: status 502: bad gateway", raw.Error())
}

func TestJobFailedErrorMessage(t *testing.T) {
	err := &JobFailedError{Handle: "t-1", Message: "quota exceeded"}
	assert.Equal(t, "job failed: quota exceeded", err.Error())
}

func TestTimeoutErrorMessage(t *testing.T) {
	err := &TimeoutError{Handle: "t-1", Deadline: 300 * time.Second, LastState: JobStateRunning}
	assert.Equal(t, "timed out after 5m0s waiting for task t-1 (last state RUNNING)", err.Error())

	early := &TimeoutError{Handle: "t-1"}
	assert.Equal(t, "timed out after 0s waiting for task t-1", early.Error())
}

func TestFetchErrorRedactsSignedURL(t *testing.T) {
	err := &FetchError{
		Index: 2,
		Total: 2,
		URL:   "https://dashscope-result.oss-cn-beijing.aliyuncs.com/1d/a.png?Expires=1700000000&OSSAccessKeyId=LTAI&Signature=abc%3D",
		Err:   errors.New("wanx: download status 403"),
	}
	msg := err.Error()
	assert.Equal(t, "fetch artifact 2 (https://dashscope-result.oss-cn-beijing.aliyuncs.com/1d/a.png): wanx: download status 403", msg)
	assert.NotContains(t, msg, "Signature")

	missing := &FetchError{Index: 1, Err: errors.New("artifact has no url")}
	assert.Equal(t, "fetch artifact 1: artifact has no url", missing.Error())
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://oss.example.com/a.png", RedactURL("https://oss.example.com/a.png?Signature=x"))
	assert.Equal(t, "https://oss.example.com/a.png", RedactURL("https://oss.example.com/a.png"))
	assert.Equal(t, "http://[::1", RedactURL("http://[::1?Signature=x"))
}
