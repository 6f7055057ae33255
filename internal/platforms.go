package internal

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	youtube "github.com/kkdai/youtube/v2"
)

// Platform identifies a supported source site.
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
	PlatformTwitter   Platform = "twitter"
	PlatformFacebook  Platform = "facebook"
	PlatformReddit    Platform = "reddit"
)

// InvokeArgs are the static extractor invocation parameters for a platform.
type InvokeArgs struct {
	MediaSelector string
	ExtraFlags    []string
	CookiesFile   string
}

type platformDef struct {
	id       Platform
	hosts    []string
	selector string
	flags    []string
}

// Detector order matters: the first host match wins.
var platformDefs = []platformDef{
	{
		id:       PlatformYouTube,
		hosts:    []string{"youtube.com", "youtu.be"},
		selector: "best[ext=mp4]/best",
	},
	{
		id:       PlatformTikTok,
		hosts:    []string{"tiktok.com"},
		selector: "best",
		flags:    []string{"--no-check-certificates"},
	},
	{
		id:       PlatformInstagram,
		hosts:    []string{"instagram.com"},
		selector: "best",
	},
	{
		id:       PlatformTwitter,
		hosts:    []string{"twitter.com", "x.com"},
		selector: "best[ext=mp4]/best",
	},
	{
		id:       PlatformFacebook,
		hosts:    []string{"facebook.com", "fb.watch"},
		selector: "best",
	},
	{
		id:       PlatformReddit,
		hosts:    []string{"reddit.com", "redd.it"},
		selector: "best",
	},
}

// Registry maps URLs to platforms and platform invocation parameters.
type Registry struct {
	defs       []platformDef
	cookiesDir string
}

func NewRegistry(cookiesDir string) *Registry {
	return &Registry{defs: platformDefs, cookiesDir: cookiesDir}
}

// Classify returns the platform for a URL, or false when no detector matches.
// Never errors: a bad or unsupported URL is a normal miss.
func (r *Registry) Classify(rawURL string) (Platform, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	for _, def := range r.defs {
		for _, h := range def.hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return def.id, true
			}
		}
	}
	return "", false
}

// ArgsFor returns the invocation parameters for a platform. A cookies file at
// <cookiesDir>/<platform>.txt is picked up when it exists on disk.
func (r *Registry) ArgsFor(p Platform) InvokeArgs {
	args := InvokeArgs{MediaSelector: "best"}
	for _, def := range r.defs {
		if def.id == p {
			args.MediaSelector = def.selector
			args.ExtraFlags = append([]string(nil), def.flags...)
			break
		}
	}
	if r.cookiesDir != "" {
		cookies := filepath.Join(r.cookiesDir, string(p)+".txt")
		if _, err := os.Stat(cookies); err == nil {
			args.CookiesFile = cookies
		}
	}
	return args
}

// Platforms lists all registered platform identifiers.
func (r *Registry) Platforms() []string {
	out := make([]string, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, string(def.id))
	}
	return out
}

// CanonicalVideoID collapses URL variants to one stable id so youtu.be,
// shorts and watch links all alias the same cache entry. Falls back to the id
// the extractor reported.
func CanonicalVideoID(p Platform, rawURL, extractedID string) string {
	if p == PlatformYouTube {
		if id, err := youtube.ExtractVideoID(rawURL); err == nil && id != "" {
			return id
		}
	}
	return extractedID
}
