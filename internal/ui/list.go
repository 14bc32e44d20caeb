package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/songzip/internal/models"
)

var _ list.Item = songItem{}

// songItem wraps [models.Song] with its selection state to implement [list.Item].
type songItem struct {
	index    int
	song     models.Song
	selected bool
}

func (i songItem) FilterValue() string { return i.song.String() }
func (i songItem) Title() string {
	mark := "[ ]"
	if i.selected {
		mark = "[x]"
	}
	return fmt.Sprintf("%s %s", mark, i.song.Name)
}
func (i songItem) Description() string {
	return fmt.Sprintf("    #%d • %s", i.index+1, i.song.Artist)
}

func songItems(songs []models.Song) []list.Item {
	items := make([]list.Item, len(songs))
	for i, s := range songs {
		items[i] = songItem{index: i, song: s, selected: true}
	}
	return items
}

// selectedSongs returns the selected songs in list order.
func selectedSongs(items []list.Item) []models.Song {
	var songs []models.Song
	for _, it := range items {
		if si, ok := it.(songItem); ok && si.selected {
			songs = append(songs, si.song)
		}
	}
	return songs
}
