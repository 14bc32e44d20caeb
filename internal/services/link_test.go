package services

import (
	"errors"
	"testing"

	"github.com/desertthunder/songzip/internal/shared"
)

func TestParseLink(t *testing.T) {
	tc := []struct {
		name string
		raw  string
		want Link
	}{
		{name: "track url", raw: "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", want: Link{LinkTrack, "4uLU6hMCjMI75M1A2tKUQC"}},
		{name: "playlist url with query", raw: "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=abc123", want: Link{LinkPlaylist, "37i9dQZF1DXcBWIGoYBM5M"}},
		{name: "album url", raw: "https://open.spotify.com/album/1DFixLWuPkv3KT3TnV35m3", want: Link{LinkAlbum, "1DFixLWuPkv3KT3TnV35m3"}},
		{name: "locale prefix", raw: "https://open.spotify.com/intl-de/track/abc", want: Link{LinkTrack, "abc"}},
		{name: "no scheme", raw: "open.spotify.com/track/abc", want: Link{LinkTrack, "abc"}},
		{name: "uri", raw: "spotify:playlist:xyz", want: Link{LinkPlaylist, "xyz"}},
		{name: "surrounding space", raw: "  spotify:track:xyz\n", want: Link{LinkTrack, "xyz"}},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLink(tt.raw)
			if err != nil {
				t.Fatalf("ParseLink(%q) returned error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("ParseLink(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}

	t.Run("Invalid", func(t *testing.T) {
		invalid := []string{
			"",
			"not-a-link",
			"https://example.com/track/abc",
			"https://open.spotify.com/artist/abc",
			"https://open.spotify.com/track/",
			"spotify:track",
			"spotify:show:abc",
		}
		for _, raw := range invalid {
			if _, err := ParseLink(raw); !errors.Is(err, shared.ErrInvalidLink) {
				t.Errorf("ParseLink(%q) error = %v, want ErrInvalidLink", raw, err)
			}
		}
	})

	t.Run("String", func(t *testing.T) {
		if got := (Link{Kind: LinkAlbum, ID: "a1"}).String(); got != "spotify:album:a1" {
			t.Errorf("unexpected uri %q", got)
		}
	})
}

func TestHasMarker(t *testing.T) {
	tc := []struct {
		raw  string
		want bool
	}{
		{raw: "https://open.spotify.com/track/abc", want: true},
		{raw: "https://open.spotify.com/playlist/abc", want: true},
		{raw: "https://open.spotify.com/album/abc", want: true},
		{raw: "not-a-link", want: false},
		{raw: "", want: false},
	}

	for _, tt := range tc {
		if got := HasMarker(tt.raw); got != tt.want {
			t.Errorf("HasMarker(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
