package models

import (
	"fmt"
	"strings"
)

// Song is a (title, primary artist) pair, either resolved from a Spotify link or supplied by a client.
type Song struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
}

// String renders the song the way progress messages show it: "<name> - <artist>".
func (s Song) String() string {
	if s.Artist == "" {
		return s.Name
	}
	return fmt.Sprintf("%s - %s", s.Name, s.Artist)
}

// Query is the free-text search string handed to the fetcher.
func (s Song) Query() string {
	return strings.TrimSpace(s.Name + " " + s.Artist)
}

// Valid reports whether the song carries enough text to search for.
func (s Song) Valid() bool {
	return strings.TrimSpace(s.Name) != ""
}
