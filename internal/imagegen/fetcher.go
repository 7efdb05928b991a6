package imagegen

import (
	"context"
	"errors"
	"fmt"

	"wanx/internal/domain"
	"wanx/internal/infra"
	"wanx/internal/storage"
)

var errMissingURL = errors.New("artifact has no url")

// Fetcher materializes artifacts into an output directory, one file per
// artifact, named by 1-based position.
//
// Downloads run in order and stop at the first failure. Files written before
// the failure stay on disk and are listed in the returned FetchError. Files
// from an earlier run with the same names are overwritten.
type Fetcher struct {
	downloader Downloader
	logger     *infra.Logger
}

// NewFetcher wires a Fetcher to a downloader.
func NewFetcher(downloader Downloader, logger *infra.Logger) *Fetcher {
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Fetcher{downloader: downloader, logger: logger}
}

// FetchAll downloads every artifact into outputDir and returns the written
// paths in artifact order.
func (f *Fetcher) FetchAll(ctx context.Context, artifacts []domain.ArtifactRef, outputDir string) ([]string, error) {
	store, err := storage.NewFileStore(outputDir)
	if err != nil {
		return nil, fmt.Errorf("imagegen: prepare output dir: %w", err)
	}

	total := len(artifacts)
	f.logger.Debug().
		Int("artifacts", total).
		Str("dir", store.BasePath()).
		Msg("imagegen: fetching artifacts")

	saved := make([]string, 0, total)
	for i, artifact := range artifacts {
		position := i + 1
		if artifact.URL == "" {
			return saved, &domain.FetchError{Index: position, Total: total, Saved: saved, Err: errMissingURL}
		}
		data, err := f.downloader.Download(ctx, artifact.URL)
		if err != nil {
			return saved, &domain.FetchError{Index: position, Total: total, URL: artifact.URL, Saved: saved, Err: err}
		}
		path, err := store.Write(ctx, domain.ArtifactFilename(position), data)
		if err != nil {
			return saved, &domain.FetchError{Index: position, Total: total, URL: artifact.URL, Saved: saved, Err: err}
		}
		f.logger.Debug().
			Int("index", position).
			Int("bytes", len(data)).
			Str("path", path).
			Msg("imagegen: artifact saved")
		saved = append(saved, path)
	}
	return saved, nil
}
