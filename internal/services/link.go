package services

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/desertthunder/songzip/internal/shared"
)

// LinkKind identifies the Spotify object a link points at.
type LinkKind string

const (
	LinkTrack    LinkKind = "track"
	LinkPlaylist LinkKind = "playlist"
	LinkAlbum    LinkKind = "album"
)

// Link is a parsed Spotify reference.
type Link struct {
	Kind LinkKind
	ID   string
}

// String renders the link as a Spotify URI.
func (l Link) String() string {
	return fmt.Sprintf("spotify:%s:%s", l.Kind, l.ID)
}

// HasMarker reports whether raw looks like a track, playlist or album link.
//
// This is the cheap check the web form does before accepting a submission.
func HasMarker(raw string) bool {
	for _, marker := range []LinkKind{LinkTrack, LinkPlaylist, LinkAlbum} {
		if strings.Contains(raw, string(marker)) {
			return true
		}
	}
	return false
}

// ParseLink extracts the object kind and id from an open.spotify.com URL or a spotify: URI.
func ParseLink(raw string) (Link, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Link{}, fmt.Errorf("%w: empty link", shared.ErrInvalidLink)
	}

	if rest, ok := strings.CutPrefix(raw, "spotify:"); ok {
		parts := strings.Split(rest, ":")
		if len(parts) != 2 {
			return Link{}, fmt.Errorf("%w: %s", shared.ErrInvalidLink, raw)
		}
		return newLink(parts[0], parts[1], raw)
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Link{}, fmt.Errorf("%w: %v", shared.ErrInvalidLink, err)
	}
	if !strings.HasSuffix(u.Hostname(), "spotify.com") {
		return Link{}, fmt.Errorf("%w: unexpected host %q", shared.ErrInvalidLink, u.Hostname())
	}

	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segments) > 0 && strings.HasPrefix(segments[0], "intl-") {
		segments = segments[1:]
	}
	if len(segments) < 2 {
		return Link{}, fmt.Errorf("%w: %s", shared.ErrInvalidLink, raw)
	}

	return newLink(segments[0], segments[1], raw)
}

func newLink(kind, id, raw string) (Link, error) {
	k := LinkKind(kind)
	switch k {
	case LinkTrack, LinkPlaylist, LinkAlbum:
	default:
		return Link{}, fmt.Errorf("%w: unsupported type %q", shared.ErrInvalidLink, kind)
	}

	if id == "" || strings.ContainsAny(id, " /?#") {
		return Link{}, fmt.Errorf("%w: %s", shared.ErrInvalidLink, raw)
	}
	return Link{Kind: k, ID: id}, nil
}
