package internal

import "time"

// Janitor sweeps expired metadata and artifact entries on a fixed interval.
type Janitor struct {
	interval  time.Duration
	meta      *MetadataCache
	artifacts *ArtifactCache
	history   *History
	stop      chan struct{}
	done      chan struct{}
}

func NewJanitor(interval time.Duration, meta *MetadataCache, artifacts *ArtifactCache, history *History) *Janitor {
	return &Janitor{
		interval:  interval,
		meta:      meta,
		artifacts: artifacts,
		history:   history,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start runs the sweep loop in the background until Stop is called.
func (j *Janitor) Start() {
	go func() {
		defer close(j.done)
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				j.Sweep()
			case <-j.stop:
				return
			}
		}
	}()
}

// Stop halts the loop and waits for it to exit.
func (j *Janitor) Stop() {
	close(j.stop)
	<-j.done
}

// Sweep runs one pass over both caches and records each artifact eviction in
// the history log.
func (j *Janitor) Sweep() {
	j.meta.DeleteExpired()
	evicted := j.artifacts.Sweep()
	if len(evicted) == 0 {
		return
	}
	for _, art := range evicted {
		j.history.Append(HistoryEvent{Action: "eviction", VideoID: art.VideoID, Date: time.Now()})
	}
	Logf(INFO, "Janitor", "Evicted %d artifact(s), %d remaining (%d bytes)", len(evicted), j.artifacts.Len(), j.artifacts.TotalBytes())
}
