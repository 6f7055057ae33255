package internal

import (
	"golang.org/x/time/rate"
)

// Server owns every process-wide collaborator: caches, limiters, the runner,
// the janitor and the websocket hub. Constructed once at startup; tests build
// independent instances.
type Server struct {
	cfg          Config
	reg          *Registry
	runner       Runner
	meta         *MetadataCache
	artifacts    *ArtifactCache
	extractLim   *Limiter
	transcodeLim *Limiter
	extractor    *Extractor
	previews     *PreviewGenerator
	janitor      *Janitor
	store        *Store
	history      *History
	hub          *ActivityHub
	metrics      *Metrics
	rate         *rate.Limiter
}

// NewServer wires the component graph. A nil runner gets the exec-backed
// default; tests pass fakes.
func NewServer(cfg Config, runner Runner) *Server {
	if runner == nil {
		runner = ExecRunner{}
	}
	reg := NewRegistry(cfg.CookiesDir)
	meta := NewMetadataCache(cfg.MetadataTTL())
	artifacts := NewArtifactCache(cfg.ArtifactDir, cfg.ArtifactTTL(), cfg.ArtifactMaxBytes())
	extractLim := NewLimiter("extract", cfg.ExtractConcurrency)
	transcodeLim := NewLimiter("transcode", cfg.TranscodeConcurrency)
	metrics := NewMetrics()
	metrics.ObserveLimiter("extract", extractLim)
	metrics.ObserveLimiter("transcode", transcodeLim)
	store := OpenStore(cfg.HistoryDBPath)
	history := NewHistory(store)
	hub := NewActivityHub()

	s := &Server{
		cfg:          cfg,
		reg:          reg,
		runner:       runner,
		meta:         meta,
		artifacts:    artifacts,
		extractLim:   extractLim,
		transcodeLim: transcodeLim,
		extractor:    NewExtractor(cfg, reg, runner, meta, extractLim, metrics),
		previews:     NewPreviewGenerator(cfg, reg, runner, meta, artifacts, transcodeLim, metrics, history, hub),
		janitor:      NewJanitor(cfg.JanitorInterval(), meta, artifacts, history),
		store:        store,
		history:      history,
		hub:          hub,
		metrics:      metrics,
		rate:         rate.NewLimiter(rate.Limit(cfg.ExtractRatePerSec), cfg.ExtractRateBurst),
	}
	return s
}

// Start launches background work (the cache janitor).
func (s *Server) Start() {
	s.janitor.Start()
}

// Close stops background work and releases the store.
func (s *Server) Close() {
	s.janitor.Stop()
	s.store.Close()
}
