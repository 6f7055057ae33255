package internal

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
)

// extractHandler handles GET /api/extract?url=<videoUrl>.
func (s *Server) extractHandler(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		s.metrics.ExtractRequest("invalid")
		c.JSON(http.StatusBadRequest, gin.H{"error": KindInvalidRequest.String(), "details": "missing url parameter"})
		return
	}
	rec, err := s.extractor.Extract(rawURL)
	if err != nil {
		kind := KindOf(err)
		s.metrics.ExtractRequest("error")
		Logf(WARN, "API", "Extract failed for %s: %v", rawURL, err)
		c.JSON(kind.HTTPStatus(), gin.H{"error": kind.String(), "details": ErrDetail(err)})
		return
	}
	s.metrics.ExtractRequest("ok")
	s.history.Append(HistoryEvent{Action: "extract", Platform: rec.Platform, VideoID: rec.VideoID, Title: rec.Title, Date: time.Now()})
	c.JSON(http.StatusOK, gin.H{
		"platform":        rec.Platform,
		"videoId":         rec.VideoID,
		"originalUrl":     rec.OriginalURL,
		"title":           rec.Title,
		"author":          rec.Author,
		"thumbnailUrl":    rec.ThumbnailURL,
		"durationSeconds": rec.DurationSeconds,
		"resolution":      rec.Resolution,
		"sizeBytes":       rec.SizeBytes,
		"containerFormat": rec.ContainerFormat,
		"previewUrl":      "/api/preview?vid=" + url.QueryEscape(rec.VideoID),
		"downloadUrl":     "/api/download?vid=" + url.QueryEscape(rec.VideoID),
	})
}

// previewHandler handles GET /api/preview?vid=<videoId>: generates the clip
// on first request and serves it with range support.
func (s *Server) previewHandler(c *gin.Context) {
	vid := c.Query("vid")
	if vid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": KindInvalidRequest.String(), "details": "missing vid parameter"})
		return
	}
	art, err := s.previews.GetOrGenerate(vid)
	if err != nil {
		kind := KindOf(err)
		Logf(WARN, "API", "Preview failed for %s: %v", vid, err)
		c.JSON(kind.HTTPStatus(), gin.H{"error": kind.String(), "videoId": vid, "details": ErrDetail(err)})
		return
	}
	ServeArtifact(c, art)
}

// downloadHandler handles GET /api/download?vid=<videoId>[&format=<id>]:
// live pass-through of the full-quality stream.
func (s *Server) downloadHandler(c *gin.Context) {
	vid := c.Query("vid")
	if vid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": KindInvalidRequest.String(), "details": "missing vid parameter"})
		return
	}
	rec, ok := s.meta.Get(vid)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": KindNotFound.String(), "videoId": vid})
		return
	}

	release, err := s.extractLim.AcquireWithin(c.Request.Context(), s.cfg.QueueTimeout())
	if err != nil {
		kind := KindOf(err)
		c.JSON(kind.HTTPStatus(), gin.H{"error": kind.String(), "videoId": vid})
		return
	}
	defer release()

	invoke := s.reg.ArgsFor(rec.Platform)
	selector := invoke.MediaSelector
	if f := c.Query("format"); f != "" {
		selector = f
	}
	args := []string{
		"--quiet",
		"--no-warnings",
		"--no-playlist",
		"--format", selector,
		"--output", "-",
	}
	if invoke.CookiesFile != "" {
		args = append(args, "--cookies", invoke.CookiesFile)
	}
	args = append(args, "--", rec.OriginalURL)

	s.metrics.SubprocessSpawn("extractor")
	// The request context drives the subprocess lifetime: a client
	// disconnect kills the process group.
	out, h, err := s.runner.Start(c.Request.Context(), s.cfg.YtDlpPath, args)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": KindProcessFailed.String(), "details": err.Error()})
		return
	}
	s.history.Append(HistoryEvent{Action: "download", Platform: rec.Platform, VideoID: vid, Title: rec.Title, Date: time.Now()})
	filename := rec.Title
	if filename == "" {
		filename = vid
	}
	if err := StreamLive(c, out, h, filename+".mp4"); err != nil {
		Logf(WARN, "API", "Download stream for %s ended with error: %v", vid, err)
	}
}

// healthHandler reports liveness plus cache and limiter occupancy.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"metadataEntries": s.meta.Len(),
		"artifactEntries": s.artifacts.Len(),
		"artifactBytes":   s.artifacts.TotalBytes(),
		"extract": gin.H{
			"inUse":    s.extractLim.InUse(),
			"capacity": s.extractLim.Capacity(),
		},
		"transcode": gin.H{
			"inUse":    s.transcodeLim.InUse(),
			"capacity": s.transcodeLim.Capacity(),
		},
		"wsClients": s.hub.ClientCount(),
		"platforms": s.reg.Platforms(),
	})
}

// historyHandler handles GET /api/history.
func (s *Server) historyHandler(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &limit); err != nil || limit < 1 {
			limit = 100
		}
	}
	events := s.history.Events(limit)
	if events == nil {
		events = []HistoryEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"history": events})
}
