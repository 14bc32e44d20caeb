// package services defines the external collaborators of a download job: the Spotify resolver and the yt-dlp fetcher
package services

import (
	"context"

	"github.com/desertthunder/songzip/internal/models"
)

// Resolver turns a Spotify track, playlist or album link into an ordered list of songs.
type Resolver interface {
	// Resolve returns the songs the link points at, in the provider's order.
	Resolve(ctx context.Context, link string) ([]models.Song, error)
}

// Fetcher acquires one song as an audio file.
type Fetcher interface {
	// Fetch searches for song, writes the best match into dir and returns the path of the produced file.
	Fetch(ctx context.Context, song models.Song, dir string) (string, error)
}
