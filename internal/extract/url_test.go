package extract_test

import (
	"testing"

	"dubflow/internal/extract"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		url  string
		want extract.Kind
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", extract.KindYouTube},
		{"https://youtu.be/dQw4w9WgXcQ", extract.KindYouTube},
		{"https://youtube.com/shorts/dQw4w9WgXcQ", extract.KindYouTube},
		{"http://m.youtube.com/watch?v=dQw4w9WgXcQ", extract.KindYouTube},
		{"https://www.instagram.com/p/Cxyz123abcd/", extract.KindInstagram},
		{"https://instagram.com/reel/Cxyz123abcd/", extract.KindInstagram},
		{"https://www.instagram.com/tv/Cxyz123abcd/", extract.KindInstagram},
	}
	for _, tc := range cases {
		got, err := extract.Classify(tc.url)
		if err != nil {
			t.Errorf("Classify(%q) error: %v", tc.url, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Classify(%q) = %s, want %s", tc.url, got, tc.want)
		}
	}
}

func TestClassifyRejectsUnsupported(t *testing.T) {
	bad := []string{
		"",
		"not a url",
		"https://vimeo.com/12345",
		"https://example.com/watch?v=dQw4w9WgXcQ",
	}
	for _, url := range bad {
		if _, err := extract.Classify(url); err == nil {
			t.Errorf("Classify(%q) should fail", url)
		}
	}
}

func TestYouTubeVideoID(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?list=PL123&v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
	}
	for _, tc := range cases {
		got, ok := extract.YouTubeVideoID(tc.url)
		if !ok {
			t.Errorf("YouTubeVideoID(%q) not found", tc.url)
			continue
		}
		if got != tc.want {
			t.Errorf("YouTubeVideoID(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}

	if _, ok := extract.YouTubeVideoID("https://example.com/video"); ok {
		t.Error("non-YouTube URL should not yield an ID")
	}
}
