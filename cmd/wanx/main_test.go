package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wanx/internal/providers/wanx/wanxtest"
)

const testKey = "sk-test"

func setupEnv(t *testing.T, srv *wanxtest.Server, lang string) {
	t.Helper()
	for _, key := range []string{"APP_ENV", "WANX_MODEL", "WANX_TIMEOUT", "WANX_HTTP_TIMEOUT", "WANX_OUTPUT_DIR", "WANX_CONFIG", "DASHSCOPE_API_KEY", "DASHSCOPE_BASE_URL"} {
		t.Setenv(key, "")
	}
	t.Setenv("WANX_LANG", lang)
	t.Setenv("WANX_POLL_INTERVAL", "1ms")
	if srv != nil {
		t.Setenv("DASHSCOPE_API_KEY", testKey)
		t.Setenv("DASHSCOPE_BASE_URL", srv.URL)
	}
}

func TestRunSavesImages(t *testing.T) {
	srv := wanxtest.New(t, testKey)
	srv.AddImage("a.png", []byte("image-a"))
	srv.AddImage("b.png", []byte("image-b"))
	srv.QueueSteps(
		wanxtest.Step{Status: "PENDING"},
		wanxtest.Step{Status: "SUCCEEDED", Images: []string{"a.png", "b.png"}},
	)
	setupEnv(t, srv, "en_US.UTF-8")
	dir := filepath.Join(t.TempDir(), "out")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"a cute cat", "--size", "1440x720", "--n", "2", "--output-dir", dir}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "Prompt: a cute cat")
	assert.Contains(t, out, "Size: 1440x720")
	assert.Contains(t, out, "Task submitted, ID: "+srv.TaskID)
	assert.Contains(t, out, "✓ Image saved: "+filepath.Join(dir, "generated_1.png"))
	assert.Contains(t, out, "✓ Image saved: "+filepath.Join(dir, "generated_2.png"))
	assert.Contains(t, out, "Done! 2 image(s) generated")

	data, err := os.ReadFile(filepath.Join(dir, "generated_2.png"))
	require.NoError(t, err)
	assert.Equal(t, "image-b", string(data))

	params := srv.Submissions()[0].Body["parameters"].(map[string]any)
	assert.Equal(t, "1440*720", params["size"])
}

func TestRunChineseOutput(t *testing.T) {
	srv := wanxtest.New(t, testKey)
	srv.AddImage("a.png", []byte("image-a"))
	srv.QueueSteps(wanxtest.Step{Status: "SUCCEEDED", Images: []string{"a.png"}})
	setupEnv(t, srv, "zh_CN.UTF-8")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--output-dir", t.TempDir(), "一只可爱的猫咪在草地上玩耍"}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	assert.Contains(t, stdout.String(), "正在生成图片...")
	assert.Contains(t, stdout.String(), "生成完成！共 1 张图片")
}

func TestRunMissingCredential(t *testing.T) {
	setupEnv(t, nil, "en")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"a cat"}, &stdout, &stderr)
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr.String(), "DASHSCOPE_API_KEY")
	assert.Empty(t, stdout.String())
}

func TestRunJobFailed(t *testing.T) {
	srv := wanxtest.New(t, testKey)
	srv.QueueSteps(wanxtest.Step{Status: "FAILED", Message: "quota exceeded"})
	setupEnv(t, srv, "en")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"a cat", "--output-dir", t.TempDir()}, &stdout, &stderr)
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr.String(), "Error: job failed: quota exceeded")
}

func TestRunTimeoutFlag(t *testing.T) {
	srv := wanxtest.New(t, testKey)
	srv.QueueSteps(wanxtest.Step{Status: "RUNNING"})
	setupEnv(t, srv, "en")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"a cat", "--timeout", "20ms", "--output-dir", t.TempDir()}, &stdout, &stderr)
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr.String(), "timed out")
}

func TestRunPartialFetchReportsSavedCount(t *testing.T) {
	srv := wanxtest.New(t, testKey)
	srv.AddImage("a.png", []byte("image-a"))
	srv.FailImage("b.png")
	srv.QueueSteps(wanxtest.Step{Status: "SUCCEEDED", Images: []string{"a.png", "b.png"}})
	setupEnv(t, srv, "en")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"a cat", "--n", "2", "--output-dir", t.TempDir()}, &stdout, &stderr)
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr.String(), "1 of 2 image(s) were saved before the failure")
	assert.Contains(t, stdout.String(), "generated_1.png")
	assert.Contains(t, stderr.String(), "/images/b.png")
	assert.NotContains(t, stderr.String(), "Signature")
}

func TestRunPartialFetchCountsReturnedArtifacts(t *testing.T) {
	srv := wanxtest.New(t, testKey)
	srv.AddImage("a.png", []byte("image-a"))
	srv.AddImage("b.png", []byte("image-b"))
	srv.FailImage("c.png")
	srv.QueueSteps(wanxtest.Step{Status: "SUCCEEDED", Images: []string{"a.png", "b.png", "c.png"}})
	setupEnv(t, srv, "en")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"a cat", "--n", "1", "--output-dir", t.TempDir()}, &stdout, &stderr)
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr.String(), "2 of 3 image(s) were saved before the failure")
}

func TestRunUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no prompt", []string{}},
		{"two prompts", []string{"a", "b"}},
		{"bad size", []string{"a cat", "--size", "512x512"}},
		{"bad count", []string{"a cat", "--n", "3"}},
		{"unknown flag", []string{"a cat", "--colour", "red"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := wanxtest.New(t, testKey)
			setupEnv(t, srv, "en")

			var stdout, stderr bytes.Buffer
			code := run(context.Background(), tt.args, &stdout, &stderr)
			assert.Equal(t, exitUsage, code)
			assert.Empty(t, srv.Submissions())
		})
	}
}

func TestParseArgsInterleaved(t *testing.T) {
	var stderr bytes.Buffer
	opts, err := parseArgs([]string{"--n", "4", "sunset over the sea", "--size", "720x1440", "--seed", "7"}, &stderr)
	require.NoError(t, err)
	assert.Equal(t, "sunset over the sea", opts.prompt)
	assert.Equal(t, 4, opts.n)
	assert.Equal(t, "720x1440", opts.size)
	assert.Equal(t, 7, opts.seed)
}
