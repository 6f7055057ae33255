package internal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClassify(t *testing.T) {
	reg := NewRegistry("")
	cases := []struct {
		url      string
		platform Platform
		ok       bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", PlatformYouTube, true},
		{"https://youtu.be/dQw4w9WgXcQ", PlatformYouTube, true},
		{"https://m.youtube.com/watch?v=dQw4w9WgXcQ", PlatformYouTube, true},
		{"https://www.tiktok.com/@user/video/7123456789", PlatformTikTok, true},
		{"https://www.instagram.com/reel/Cabc123/", PlatformInstagram, true},
		{"https://twitter.com/user/status/123", PlatformTwitter, true},
		{"https://x.com/user/status/123", PlatformTwitter, true},
		{"https://www.facebook.com/watch/?v=123", PlatformFacebook, true},
		{"https://fb.watch/abc/", PlatformFacebook, true},
		{"https://www.reddit.com/r/videos/comments/abc/", PlatformReddit, true},
		{"https://example.com/video/123", "", false},
		{"https://notyoutube.com/watch", "", false},
		{"not a url", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := reg.Classify(tc.url)
		if ok != tc.ok || got != tc.platform {
			t.Errorf("Classify(%q) = (%q, %v), want (%q, %v)", tc.url, got, ok, tc.platform, tc.ok)
		}
	}
}

func TestClassifyIsPure(t *testing.T) {
	reg := NewRegistry("")
	url := "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	first, _ := reg.Classify(url)
	for i := 0; i < 50; i++ {
		reg.Classify("https://www.tiktok.com/@u/video/1")
		got, _ := reg.Classify(url)
		if got != first {
			t.Fatalf("Classify not stable: got %q then %q", first, got)
		}
	}
}

func TestArgsForCookies(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(dir)

	args := reg.ArgsFor(PlatformYouTube)
	if args.CookiesFile != "" {
		t.Fatalf("expected no cookies file, got %q", args.CookiesFile)
	}

	cookies := filepath.Join(dir, "youtube.txt")
	if err := os.WriteFile(cookies, []byte("# Netscape HTTP Cookie File\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	args = reg.ArgsFor(PlatformYouTube)
	if args.CookiesFile != cookies {
		t.Fatalf("expected cookies file %q, got %q", cookies, args.CookiesFile)
	}
	if args.MediaSelector == "" {
		t.Fatal("expected a media selector")
	}
}

func TestCanonicalVideoID(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
	}
	for _, tc := range cases {
		if got := CanonicalVideoID(PlatformYouTube, tc.url, "fallback"); got != tc.want {
			t.Errorf("CanonicalVideoID(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
	// Non-YouTube platforms keep the extractor's id.
	if got := CanonicalVideoID(PlatformTikTok, "https://www.tiktok.com/@u/video/71234", "71234"); got != "71234" {
		t.Errorf("expected extractor id passthrough, got %q", got)
	}
}
