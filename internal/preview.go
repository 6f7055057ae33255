package internal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// PreviewGenerator produces short, silent, downscaled MP4 clips through an
// extractor|transcoder subprocess pipe, one generation per videoId at a time.
type PreviewGenerator struct {
	cfg       Config
	reg       *Registry
	runner    Runner
	meta      *MetadataCache
	artifacts *ArtifactCache
	limiter   *Limiter
	metrics   *Metrics
	history   *History
	hub       *ActivityHub
	group     singleflight.Group
}

func NewPreviewGenerator(cfg Config, reg *Registry, runner Runner, meta *MetadataCache, artifacts *ArtifactCache, limiter *Limiter, metrics *Metrics, history *History, hub *ActivityHub) *PreviewGenerator {
	return &PreviewGenerator{
		cfg:       cfg,
		reg:       reg,
		runner:    runner,
		meta:      meta,
		artifacts: artifacts,
		limiter:   limiter,
		metrics:   metrics,
		history:   history,
		hub:       hub,
	}
}

// GetOrGenerate returns the cached preview for a videoId or generates it,
// coalescing concurrent requests for the same id into one pipeline run.
func (g *PreviewGenerator) GetOrGenerate(videoID string) (*ArtifactFile, error) {
	if art, ok := g.artifacts.Get(videoID); ok {
		g.metrics.CacheEvent("artifact", "hit")
		return art, nil
	}
	v, err, _ := g.group.Do(videoID, func() (interface{}, error) {
		if art, ok := g.artifacts.Get(videoID); ok {
			return art, nil
		}
		return g.generate(videoID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ArtifactFile), nil
}

// generate runs the transcode pipeline detached from any one caller so the
// shared result survives individual disconnects.
func (g *PreviewGenerator) generate(videoID string) (*ArtifactFile, error) {
	rec, ok := g.meta.Get(videoID)
	if !ok {
		return nil, NewError(KindNotFound, videoID)
	}
	g.metrics.CacheEvent("artifact", "miss")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	release, err := g.limiter.AcquireWithin(ctx, g.cfg.QueueTimeout())
	if err != nil {
		return nil, err
	}
	defer release()

	if err := os.MkdirAll(g.artifacts.Dir(), 0775); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	tmpPath := filepath.Join(g.artifacts.Dir(), fmt.Sprintf(".tmp-%s-%s.mp4", sanitizeFilename(videoID), uuid.NewString()[:8]))
	defer os.Remove(tmpPath)

	g.hub.Broadcast("preview_started", map[string]string{"videoId": videoID})
	started := time.Now()

	var runErr error
	if rec.DirectMediaURL != "" {
		runErr = g.transcodeDirect(ctx, rec.DirectMediaURL, tmpPath)
	} else {
		runErr = g.transcodePiped(ctx, rec, tmpPath)
	}
	if runErr != nil {
		g.hub.Broadcast("preview_failed", map[string]string{"videoId": videoID, "error": runErr.Error()})
		return nil, refineProcessError(runErr, ErrDetail(runErr))
	}

	fi, err := os.Stat(tmpPath)
	if err != nil || fi.Size() == 0 {
		return nil, NewError(KindEmptyOutput, "transcoder produced no preview file")
	}
	finalPath := filepath.Join(g.artifacts.Dir(), sanitizeFilename(videoID)+".mp4")
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return nil, fmt.Errorf("move preview into place: %w", err)
	}

	art := g.artifacts.Put(videoID, finalPath, fi.Size())
	g.history.Append(HistoryEvent{Action: "preview", Platform: rec.Platform, VideoID: videoID, Title: rec.Title, Date: time.Now()})
	g.hub.Broadcast("preview_ready", map[string]string{"videoId": videoID})
	Logf(INFO, "Preview", "Generated %s (%d bytes in %s)", finalPath, fi.Size(), time.Since(started).Round(time.Millisecond))
	return art, nil
}

// transcodeDirect reads the short-lived upstream media URL straight into the
// transcoder, skipping the extractor stage.
func (g *PreviewGenerator) transcodeDirect(ctx context.Context, mediaURL, outPath string) error {
	g.metrics.SubprocessSpawn("transcoder")
	out, h, err := g.runner.Start(ctx, g.cfg.FfmpegPath, g.transcodeArgs(mediaURL, outPath))
	if err != nil {
		return err
	}
	defer out.Close()
	done := make(chan error, 1)
	go func() { done <- h.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(g.cfg.SubprocessTimeout()):
		h.Kill()
		<-done
		return NewError(KindTimeout, "transcoder exceeded "+g.cfg.SubprocessTimeout().String())
	}
}

// transcodePiped streams media bytes from the extraction tool into the
// transcoder's stdin.
func (g *PreviewGenerator) transcodePiped(ctx context.Context, rec *VideoRecord, outPath string) error {
	invoke := g.reg.ArgsFor(rec.Platform)
	srcArgs := []string{
		"--quiet",
		"--no-warnings",
		"--no-playlist",
		"--format", "worst[ext=mp4]/worst",
		"--output", "-",
	}
	if invoke.CookiesFile != "" {
		srcArgs = append(srcArgs, "--cookies", invoke.CookiesFile)
	}
	srcArgs = append(srcArgs, "--", rec.OriginalURL)

	g.metrics.SubprocessSpawn("extractor")
	g.metrics.SubprocessSpawn("transcoder")
	p, err := StartPipeline(ctx, g.runner, g.cfg.YtDlpPath, srcArgs, g.cfg.FfmpegPath, g.transcodeArgs("pipe:0", outPath))
	if err != nil {
		return err
	}
	return p.WaitTimeout(g.cfg.SubprocessTimeout())
}

func (g *PreviewGenerator) transcodeArgs(input, outPath string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", input,
		"-t", strconv.Itoa(g.cfg.PreviewSeconds),
		"-vf", fmt.Sprintf("scale=%d:-2", g.cfg.PreviewWidth),
		"-an",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-movflags", "+faststart",
		"-f", "mp4",
		"-y", outPath,
	}
}

// sanitizeFilename strips characters that are unsafe in filenames.
func sanitizeFilename(name string) string {
	forbidden := "/\\:*?\"<>|"
	out := make([]rune, 0, len(name))
	for _, r := range name {
		replaced := false
		for _, f := range forbidden {
			if r == f {
				out = append(out, '_')
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, r)
		}
	}
	return string(out)
}
