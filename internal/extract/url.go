// Package extract pulls a session's source audio out of a video URL. Each
// supported site has an ordered chain of download strategies; the first one
// that produces a usable audio file wins.
package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind identifies the site a URL belongs to.
type Kind string

const (
	KindYouTube   Kind = "youtube"
	KindInstagram Kind = "instagram"
)

var (
	youtubeURLPattern   = regexp.MustCompile(`^(https?://)?(www\.|m\.)?(youtube\.com/watch\?v=|youtu\.be/|youtube\.com/shorts/)[\w-]{11}`)
	instagramURLPattern = regexp.MustCompile(`^(https?://)?(www\.)?(instagram\.com/p/|instagram\.com/reel/|instagram\.com/tv/|instagram\.com/stories/)[\w.-]+`)

	videoIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:youtube\.com/(?:[^/]+/.+/|(?:v|e(?:mbed)?)/|.*[?&]v=)|youtu\.be/)([^"&?/ ]{11})`),
		regexp.MustCompile(`youtube\.com/shorts/([^"&?/ ]{11})`),
	}
)

// Classify reports which supported site a URL belongs to.
func Classify(rawURL string) (Kind, error) {
	trimmed := strings.TrimSpace(rawURL)
	switch {
	case youtubeURLPattern.MatchString(trimmed):
		return KindYouTube, nil
	case instagramURLPattern.MatchString(trimmed):
		return KindInstagram, nil
	default:
		return "", fmt.Errorf("unsupported video URL %q", rawURL)
	}
}

// YouTubeVideoID extracts the 11-character video identifier from a YouTube
// URL in any of its common shapes.
func YouTubeVideoID(rawURL string) (string, bool) {
	for _, pattern := range videoIDPatterns {
		if m := pattern.FindStringSubmatch(rawURL); m != nil {
			return m[1], true
		}
	}
	return "", false
}
