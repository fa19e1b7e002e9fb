package discovery

import (
	"unicode/utf8"

	"github.com/desertthunder/scout/internal/models"
)

// followerBonus rewards profiles with a real audience on a platform.
const (
	followerBonusThreshold = 1000
	followerBonus          = 0.05
)

// scoreWeights are the completeness signals and their contributions.
// Contact data weighs heaviest: a reachable artist is worth more to
// outreach than a fully described anonymous one.
var scoreWeights = []struct {
	signal string
	weight float64
	has    func(*models.ArtistProfile) bool
}{
	{"youtube_channel_id", 0.10, func(p *models.ArtistProfile) bool { return p.YouTubeChannelID != "" }},
	{"instagram_handle", 0.15, func(p *models.ArtistProfile) bool { return p.InstagramHandle != "" }},
	{"spotify_id", 0.15, func(p *models.ArtistProfile) bool { return p.SpotifyID != "" }},
	{"email", 0.20, func(p *models.ArtistProfile) bool { return p.Email != "" }},
	{"website", 0.10, func(p *models.ArtistProfile) bool { return p.Website != "" }},
	{"genres", 0.10, func(p *models.ArtistProfile) bool { return len(p.Genres) > 0 }},
	{"bio", 0.10, func(p *models.ArtistProfile) bool { return utf8.RuneCountInString(p.Bio) > 50 }},
	{"avatar", 0.05, func(p *models.ArtistProfile) bool { return p.AvatarURL != "" }},
	{"lyric_themes", 0.05, func(p *models.ArtistProfile) bool { return len(p.LyricThemes) > 0 }},
}

// Score rates a frozen profile's completeness in [0, 1]. It is a pure
// function of the profile, so equal profiles always score equally.
func Score(p *models.ArtistProfile) float64 {
	if p == nil {
		return 0
	}

	var total float64
	for _, w := range scoreWeights {
		if w.has(p) {
			total += w.weight
		}
	}

	if p.FollowerCount(models.CountInstagramFollowers) > followerBonusThreshold {
		total += followerBonus
	}
	if p.FollowerCount(models.CountSpotifyFollowers) > followerBonusThreshold {
		total += followerBonus
	}

	if total > 1 {
		total = 1
	}
	return total
}
