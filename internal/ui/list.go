package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/scout/internal/models"
)

var (
	_ list.Item = artistItem{}
)

// artistItem wraps [models.ArtistProfile] to implement [list.Item].
type artistItem struct {
	artist models.ArtistProfile
}

func (i artistItem) FilterValue() string { return i.artist.Name }
func (i artistItem) Title() string       { return i.artist.Name }
func (i artistItem) Description() string {
	desc := fmt.Sprintf("score %.2f", i.artist.EnrichmentScore)
	if len(i.artist.Genres) > 0 {
		desc = fmt.Sprintf("%s • %s", desc, strings.Join(i.artist.Genres, ", "))
	}
	if i.artist.SpotifyID != "" {
		desc = fmt.Sprintf("%s • spotify", desc)
	}
	if i.artist.InstagramHandle != "" {
		desc = fmt.Sprintf("%s • @%s", desc, i.artist.InstagramHandle)
	}
	return desc
}
