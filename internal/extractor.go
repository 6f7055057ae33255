package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	extractMaxRetries = 2
	extractBackoff    = time.Second
)

// Extractor turns a URL into a VideoRecord by invoking the extraction tool in
// metadata-only mode, bounded by the extract limiter and cached with
// coalescing in the metadata cache.
type Extractor struct {
	cfg     Config
	reg     *Registry
	runner  Runner
	cache   *MetadataCache
	limiter *Limiter
	metrics *Metrics
	sleep   func(time.Duration)
}

func NewExtractor(cfg Config, reg *Registry, runner Runner, cache *MetadataCache, limiter *Limiter, metrics *Metrics) *Extractor {
	return &Extractor{
		cfg:     cfg,
		reg:     reg,
		runner:  runner,
		cache:   cache,
		limiter: limiter,
		metrics: metrics,
		sleep:   time.Sleep,
	}
}

// Extract returns the metadata record for a URL, from cache when live.
// Concurrent calls for the same URL share one extraction subprocess.
func (e *Extractor) Extract(rawURL string) (*VideoRecord, error) {
	if _, ok := e.reg.Classify(rawURL); !ok {
		return nil, NewError(KindUnsupported, rawURL)
	}
	rec, computed, err := e.cache.GetOrCompute(rawURL, func() (*VideoRecord, error) {
		return e.fetch(rawURL)
	})
	if err != nil {
		return nil, err
	}
	if !computed {
		e.metrics.CacheEvent("metadata", "hit")
	}
	return rec, nil
}

// fetch runs the extraction tool and builds the record. It runs detached from
// any single caller's context: a shared in-flight extraction must complete
// for its remaining waiters even when one of them disconnects.
func (e *Extractor) fetch(rawURL string) (*VideoRecord, error) {
	platform, ok := e.reg.Classify(rawURL)
	if !ok {
		return nil, NewError(KindUnsupported, rawURL)
	}
	e.metrics.CacheEvent("metadata", "miss")
	ctx := context.Background()
	release, err := e.limiter.AcquireWithin(ctx, e.cfg.QueueTimeout())
	if err != nil {
		return nil, err
	}
	defer release()

	args := e.buildArgs(platform, rawURL)
	var lastErr error
	for attempt := 0; attempt <= extractMaxRetries; attempt++ {
		if attempt > 0 {
			e.sleep(time.Duration(attempt) * extractBackoff)
			Logf(INFO, "Extract", "Retry %d/%d for %s", attempt, extractMaxRetries, rawURL)
		}
		e.metrics.SubprocessSpawn("extractor")
		stdout, stderr, runErr := e.runner.Run(ctx, e.cfg.YtDlpPath, args, e.cfg.SubprocessTimeout())
		if runErr != nil {
			runErr = refineProcessError(runErr, string(stderr))
			if !KindOf(runErr).Retryable() {
				Logf(WARN, "Extract", "Permanent failure for %s: %v", rawURL, runErr)
				return nil, runErr
			}
			lastErr = runErr
			continue
		}
		rec, parseErr := e.buildRecord(platform, rawURL, stdout)
		if parseErr != nil {
			lastErr = parseErr
			continue
		}
		Logf(INFO, "Extract", "Extracted %s: id=%s title=%q duration=%.0fs", platform, rec.VideoID, rec.Title, rec.DurationSeconds)
		return rec, nil
	}
	return nil, lastErr
}

func (e *Extractor) buildArgs(platform Platform, rawURL string) []string {
	invoke := e.reg.ArgsFor(platform)
	args := []string{
		"--dump-single-json",
		"--skip-download",
		"--no-warnings",
		"--no-playlist",
		"--format", invoke.MediaSelector,
	}
	args = append(args, invoke.ExtraFlags...)
	if invoke.CookiesFile != "" {
		args = append(args, "--cookies", invoke.CookiesFile)
	}
	args = append(args, "--", rawURL)
	return args
}

// refineProcessError upgrades a generic process failure to a specific kind
// using the stderr text. Timeouts and empty output pass through unchanged.
func refineProcessError(err error, stderr string) error {
	if KindOf(err) != KindProcessFailed {
		return err
	}
	detail := ErrDetail(err)
	if detail == "" {
		detail = stderrTail(stderr)
	}
	if kind := KindFromStderr(detail); kind != KindProcessFailed {
		return &GatewayError{Kind: kind, Detail: detail, Err: err}
	}
	return err
}

// ytDlpFormat mirrors the fields of one entry in the tool's formats array.
type ytDlpFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Filesize       int64   `json:"filesize"`
	FilesizeApprox float64 `json:"filesize_approx"`
	URL            string  `json:"url"`
}

// ytDlpMetadata mirrors the --dump-single-json payload subset the gateway
// depends on.
type ytDlpMetadata struct {
	ID               string        `json:"id"`
	Title            string        `json:"title"`
	Uploader         string        `json:"uploader"`
	Channel          string        `json:"channel"`
	Duration         float64       `json:"duration"`
	Thumbnail        string        `json:"thumbnail"`
	Ext              string        `json:"ext"`
	Width            int           `json:"width"`
	Height           int           `json:"height"`
	URL              string        `json:"url"`
	Filesize         int64         `json:"filesize"`
	FilesizeApprox   float64       `json:"filesize_approx"`
	Formats          []ytDlpFormat `json:"formats"`
	RequestedFormats []ytDlpFormat `json:"requested_formats"`
}

func (e *Extractor) buildRecord(platform Platform, rawURL string, stdout []byte) (*VideoRecord, error) {
	var meta ytDlpMetadata
	if err := json.Unmarshal(stdout, &meta); err != nil {
		return nil, NewError(KindEmptyOutput, fmt.Sprintf("unparsable extractor output: %v", err))
	}
	if meta.ID == "" && meta.Title == "" {
		return nil, NewError(KindEmptyOutput, "extractor output missing id and title")
	}

	resolution, size, directURL := selectRepresentativeFormat(&meta)
	author := meta.Uploader
	if author == "" {
		author = meta.Channel
	}
	container := meta.Ext
	if container == "" {
		container = "mp4"
	}
	rec := &VideoRecord{
		Platform:        platform,
		VideoID:         CanonicalVideoID(platform, rawURL, meta.ID),
		OriginalURL:     rawURL,
		Title:           meta.Title,
		Author:          author,
		ThumbnailURL:    meta.Thumbnail,
		DurationSeconds: meta.Duration,
		Resolution:      resolution,
		SizeBytes:       size,
		ContainerFormat: container,
		DirectMediaURL:  directURL,
		FetchedAt:       time.Now(),
	}
	return rec, nil
}

// selectRepresentativeFormat picks the format the record reports. Combined
// audio+video formats win; a merged video+audio selection sums both sizes and
// reports the video component's spatial resolution. Unknowns stay at the
// deterministic defaults: duration 0, size nil, resolution "unknown".
func selectRepresentativeFormat(meta *ytDlpMetadata) (resolution string, size *int64, directURL string) {
	resolution = "unknown"

	if len(meta.RequestedFormats) > 0 {
		var total int64
		var video *ytDlpFormat
		for i := range meta.RequestedFormats {
			f := &meta.RequestedFormats[i]
			total += formatSize(f)
			if f.VCodec != "" && f.VCodec != "none" && video == nil {
				video = f
			}
		}
		if video != nil {
			resolution = formatResolution(video.Width, video.Height)
			directURL = video.URL
		}
		if total > 0 {
			size = &total
		}
		return resolution, size, directURL
	}

	var best *ytDlpFormat
	for i := range meta.Formats {
		f := &meta.Formats[i]
		if f.VCodec == "" || f.VCodec == "none" || f.ACodec == "" || f.ACodec == "none" {
			continue
		}
		if best == nil || f.Height > best.Height {
			best = f
		}
	}
	if best != nil {
		resolution = formatResolution(best.Width, best.Height)
		directURL = best.URL
		if s := formatSize(best); s > 0 {
			size = &s
		}
		return resolution, size, directURL
	}

	// No usable formats array: fall back to the top-level fields.
	resolution = formatResolution(meta.Width, meta.Height)
	directURL = meta.URL
	if meta.Filesize > 0 {
		s := meta.Filesize
		size = &s
	} else if meta.FilesizeApprox > 0 {
		s := int64(meta.FilesizeApprox)
		size = &s
	}
	return resolution, size, directURL
}

func formatSize(f *ytDlpFormat) int64 {
	if f.Filesize > 0 {
		return f.Filesize
	}
	if f.FilesizeApprox > 0 {
		return int64(f.FilesizeApprox)
	}
	return 0
}

func formatResolution(width, height int) string {
	switch {
	case width > 0 && height > 0:
		return fmt.Sprintf("%dx%d", width, height)
	case height > 0:
		return fmt.Sprintf("%dp", height)
	default:
		return "unknown"
	}
}
