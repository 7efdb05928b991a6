package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/text/message"

	"wanx/internal/domain"
	"wanx/internal/i18n"
	"wanx/internal/imagegen"
	"wanx/internal/infra"
	"wanx/internal/providers/wanx"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

type options struct {
	size       string
	n          int
	outputDir  string
	negative   string
	seed       int
	timeout    time.Duration
	configPath string
	verbose    bool
	prompt     string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	req, err := domain.NewGenerationRequest(opts.prompt, opts.size, opts.n, opts.negative, opts.seed)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	cfg, err := infra.LoadConfig(opts.configPath)
	if err != nil {
		p := i18n.NewPrinter(localeFromEnv())
		var cerr *domain.ConfigError
		if errors.As(err, &cerr) && cerr.Key == "DASHSCOPE_API_KEY" {
			p.Fprintf(stderr, i18n.MsgMissingKey)
			p.Fprintf(stderr, i18n.MsgMissingKeyTip)
			return exitError
		}
		p.Fprintf(stderr, i18n.MsgError, err)
		return exitError
	}

	logger := infra.NewLogger(stderr, cfg.AppEnv, opts.verbose)
	p := i18n.NewPrinter(cfg.Lang)

	deadline := cfg.Timeout
	if opts.timeout > 0 {
		deadline = opts.timeout
	}
	outputDir := cfg.OutputDir
	if opts.outputDir != "" {
		outputDir = opts.outputDir
	}

	client := wanx.NewClient(wanx.Options{
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		RequestTimeout: cfg.HTTPTimeout,
		PollInterval:   cfg.PollInterval,
		Logger:         &logger,
	})
	generator, err := imagegen.NewGenerator(imagegen.Options{
		Client:   client,
		Deadline: deadline,
		Logger:   &logger,
		Reporter: &printReporter{p: p, w: stdout},
	})
	if err != nil {
		p.Fprintf(stderr, i18n.MsgError, err)
		return exitError
	}

	p.Fprintf(stdout, i18n.MsgGenerating)
	p.Fprintf(stdout, i18n.MsgPrompt, req.Prompt)
	p.Fprintf(stdout, i18n.MsgSize, req.Size)
	p.Fprintf(stdout, i18n.MsgCount, req.Count)
	fmt.Fprintln(stdout)

	result, err := generator.Run(ctx, cfg.APIKey, req, outputDir)
	if err != nil {
		var ferr *domain.FetchError
		if errors.As(err, &ferr) && len(ferr.Saved) > 0 {
			p.Fprintf(stderr, i18n.MsgPartial, len(ferr.Saved), ferr.Total)
		}
		p.Fprintf(stderr, i18n.MsgError, err)
		return exitError
	}

	p.Fprintf(stdout, i18n.MsgDone, len(result.Files))
	return exitOK
}

// parseArgs accepts flags before and after the prompt, matching how the
// command is usually invoked: wanx "a cat" --size 1440x720.
func parseArgs(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("wanx", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.size, "size", domain.DefaultSize, "image size: "+strings.Join(domain.Sizes, ", "))
	fs.IntVar(&opts.n, "n", domain.DefaultCount, fmt.Sprintf("number of images: %v", domain.Counts))
	fs.StringVar(&opts.outputDir, "output-dir", "", "directory to save images into (default \".\" or WANX_OUTPUT_DIR)")
	fs.StringVar(&opts.negative, "negative-prompt", "", "content to keep out of the image")
	fs.IntVar(&opts.seed, "seed", 0, "random seed, 0 lets the service choose")
	fs.DurationVar(&opts.timeout, "timeout", 0, "maximum time to wait for the task (default 5m or WANX_TIMEOUT)")
	fs.StringVar(&opts.configPath, "config", "", "optional YAML config file")
	fs.BoolVar(&opts.verbose, "verbose", false, "enable debug logging on stderr")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: wanx [flags] <prompt>")
		fs.PrintDefaults()
	}

	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
	if len(positional) != 1 {
		fs.Usage()
		return nil, fmt.Errorf("expected exactly one prompt argument, got %d", len(positional))
	}
	opts.prompt = positional[0]
	return opts, nil
}

func localeFromEnv() string {
	if v := os.Getenv("WANX_LANG"); v != "" {
		return v
	}
	return os.Getenv("LANG")
}

type printReporter struct {
	p *message.Printer
	w io.Writer
}

func (r *printReporter) Submitted(handle domain.JobHandle) {
	r.p.Fprintf(r.w, i18n.MsgSubmitted, handle)
	r.p.Fprintf(r.w, i18n.MsgWaiting)
}

func (r *printReporter) Completed(artifacts int) {
	r.p.Fprintf(r.w, i18n.MsgCompleted, artifacts)
}

func (r *printReporter) Saved(path string) {
	r.p.Fprintf(r.w, i18n.MsgSaved, path)
}
