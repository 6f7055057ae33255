package internal

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"
)

func newTestPreview(t *testing.T, fake *fakeRunner) (*PreviewGenerator, *MetadataCache) {
	t.Helper()
	cfg := testConfig(t)
	reg := NewRegistry(cfg.CookiesDir)
	meta := NewMetadataCache(cfg.MetadataTTL())
	artifacts := NewArtifactCache(cfg.ArtifactDir, cfg.ArtifactTTL(), cfg.ArtifactMaxBytes())
	limiter := NewLimiter("transcode", cfg.TranscodeConcurrency)
	g := NewPreviewGenerator(cfg, reg, fake, meta, artifacts, limiter, NewMetrics(), NewHistory(NewMemoryStore()), NewActivityHub())
	return g, meta
}

func TestPreviewGeneratesThroughPipe(t *testing.T) {
	fake := &fakeRunner{}
	g, meta := newTestPreview(t, fake)
	meta.Put(testRecord())

	art, err := g.GetOrGenerate("dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("GetOrGenerate: %v", err)
	}
	data, err := os.ReadFile(art.Path)
	if err != nil {
		t.Fatalf("preview file missing: %v", err)
	}
	if string(data) != "fake preview" {
		t.Errorf("unexpected preview content %q", data)
	}
	if art.SizeBytes != int64(len(data)) {
		t.Errorf("sizeBytes = %d, file is %d", art.SizeBytes, len(data))
	}
	_, start, startInput := fake.counts()
	if start != 1 || startInput != 1 {
		t.Errorf("expected one source and one sink process, got %d/%d", start, startInput)
	}
}

func TestPreviewSecondCallHitsArtifactCache(t *testing.T) {
	fake := &fakeRunner{}
	g, meta := newTestPreview(t, fake)
	meta.Put(testRecord())

	first, err := g.GetOrGenerate("dQw4w9WgXcQ")
	if err != nil {
		t.Fatal(err)
	}
	second, err := g.GetOrGenerate("dQw4w9WgXcQ")
	if err != nil {
		t.Fatal(err)
	}
	if first.Path != second.Path {
		t.Fatalf("expected the same artifact, got %q and %q", first.Path, second.Path)
	}
	_, start, startInput := fake.counts()
	if start != 1 || startInput != 1 {
		t.Errorf("cached call re-ran the pipeline: %d/%d spawns", start, startInput)
	}
}

func TestPreviewCoalescesConcurrentRequests(t *testing.T) {
	gate := make(chan struct{})
	fake := &fakeRunner{}
	fake.startInputFn = func(name string, args []string, stdin io.Reader) (io.ReadCloser, ProcHandle, error) {
		out := outputPathFromArgs(args)
		return io.NopCloser(bytes.NewReader(nil)), &fakeHandle{waitFn: func() error {
			<-gate
			if stdin != nil {
				io.Copy(io.Discard, stdin)
			}
			return os.WriteFile(out, []byte("fake preview"), 0o644)
		}}, nil
	}
	g, meta := newTestPreview(t, fake)
	meta.Put(testRecord())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.GetOrGenerate("dQw4w9WgXcQ"); err != nil {
				t.Errorf("GetOrGenerate: %v", err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	if _, _, startInput := fake.counts(); startInput != 1 {
		t.Fatalf("8 concurrent requests should share 1 pipeline, got %d", startInput)
	}
}

func TestPreviewUnknownVideoNoSpawn(t *testing.T) {
	fake := &fakeRunner{}
	g, _ := newTestPreview(t, fake)

	_, err := g.GetOrGenerate("nope")
	if err == nil || KindOf(err) != KindNotFound {
		t.Fatalf("expected KindNotFound, got %v", err)
	}
	run, start, startInput := fake.counts()
	if run+start+startInput != 0 {
		t.Fatalf("no subprocess should spawn for unknown videoId, got %d/%d/%d", run, start, startInput)
	}
}

func TestPreviewDirectURLSkipsExtractorStage(t *testing.T) {
	fake := &fakeRunner{}
	fake.startFn = func(name string, args []string) (io.ReadCloser, ProcHandle, error) {
		out := outputPathFromArgs(args)
		return io.NopCloser(bytes.NewReader(nil)), &fakeHandle{waitFn: func() error {
			return os.WriteFile(out, []byte("fake preview"), 0o644)
		}}, nil
	}
	g, meta := newTestPreview(t, fake)
	rec := testRecord()
	rec.DirectMediaURL = "https://cdn.example/video.mp4"
	meta.Put(rec)

	art, err := g.GetOrGenerate("dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("GetOrGenerate: %v", err)
	}
	if _, err := os.Stat(art.Path); err != nil {
		t.Fatalf("preview file missing: %v", err)
	}
	_, start, startInput := fake.counts()
	if start != 1 || startInput != 0 {
		t.Errorf("direct transcode should use a single stage, got %d/%d", start, startInput)
	}
}

func TestPreviewFailureNotCached(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	fake := &fakeRunner{}
	fake.startInputFn = func(name string, args []string, stdin io.Reader) (io.ReadCloser, ProcHandle, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		out := outputPathFromArgs(args)
		return io.NopCloser(bytes.NewReader(nil)), &fakeHandle{waitFn: func() error {
			if stdin != nil {
				io.Copy(io.Discard, stdin)
			}
			if n == 1 {
				return errors.New("exit status 1")
			}
			return os.WriteFile(out, []byte("fake preview"), 0o644)
		}}, nil
	}
	g, meta := newTestPreview(t, fake)
	meta.Put(testRecord())

	if _, err := g.GetOrGenerate("dQw4w9WgXcQ"); err == nil {
		t.Fatal("expected first generation to fail")
	}
	art, err := g.GetOrGenerate("dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("expected second attempt to regenerate: %v", err)
	}
	if _, serr := os.Stat(art.Path); serr != nil {
		t.Fatalf("preview file missing: %v", serr)
	}
}
