package discovery

import (
	"math"
	"strings"
	"testing"

	"github.com/desertthunder/scout/internal/models"
)

func scoresClose(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScoreEmptyProfile(t *testing.T) {
	if got := Score(nil); got != 0 {
		t.Errorf("Score(nil) = %f, want 0", got)
	}
	if got := Score(&models.ArtistProfile{Name: "Nobody"}); got != 0 {
		t.Errorf("name-only profile scored %f, want 0", got)
	}
}

func TestScoreSignalWeights(t *testing.T) {
	tests := []struct {
		name string
		fill func(*models.ArtistProfile)
		want float64
	}{
		{"youtube channel", func(p *models.ArtistProfile) { p.YouTubeChannelID = "UCx" }, 0.10},
		{"instagram", func(p *models.ArtistProfile) { p.InstagramHandle = "artist" }, 0.15},
		{"spotify", func(p *models.ArtistProfile) { p.SpotifyID = "abc" }, 0.15},
		{"email", func(p *models.ArtistProfile) { p.Email = "a@b.co" }, 0.20},
		{"website", func(p *models.ArtistProfile) { p.Website = "https://a.example" }, 0.10},
		{"genres", func(p *models.ArtistProfile) { p.Genres = []string{"indie"} }, 0.10},
		{"long bio", func(p *models.ArtistProfile) { p.Bio = strings.Repeat("a", 51) }, 0.10},
		{"short bio ignored", func(p *models.ArtistProfile) { p.Bio = "too short" }, 0},
		{"avatar", func(p *models.ArtistProfile) { p.AvatarURL = "https://a.example/p.jpg" }, 0.05},
		{"lyric themes", func(p *models.ArtistProfile) { p.LyricThemes = []string{"heartbreak"} }, 0.05},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			profile := &models.ArtistProfile{Name: "X"}
			tc.fill(profile)
			if got := Score(profile); !scoresClose(got, tc.want) {
				t.Errorf("score = %f, want %f", got, tc.want)
			}
		})
	}
}

func TestScoreFollowerBonus(t *testing.T) {
	profile := &models.ArtistProfile{Name: "X", InstagramHandle: "artist"}
	profile.SetFollowerCount(models.CountInstagramFollowers, 5000)

	if got := Score(profile); !scoresClose(got, 0.20) {
		t.Errorf("score = %f, want 0.20", got)
	}

	// at the threshold there is no bonus yet
	profile.SetFollowerCount(models.CountInstagramFollowers, 1000)
	if got := Score(profile); !scoresClose(got, 0.15) {
		t.Errorf("score at threshold = %f, want 0.15", got)
	}
}

func TestScoreNeverDecreasesAsFieldsFill(t *testing.T) {
	profile := &models.ArtistProfile{Name: "X"}
	previous := Score(profile)

	steps := []func(*models.ArtistProfile){
		func(p *models.ArtistProfile) { p.YouTubeChannelID = "UCx" },
		func(p *models.ArtistProfile) { p.InstagramHandle = "artist" },
		func(p *models.ArtistProfile) { p.SpotifyID = "abc" },
		func(p *models.ArtistProfile) { p.Email = "a@b.co" },
		func(p *models.ArtistProfile) { p.Website = "https://a.example" },
		func(p *models.ArtistProfile) { p.Genres = []string{"indie", "pop"} },
		func(p *models.ArtistProfile) { p.Bio = strings.Repeat("b", 80) },
		func(p *models.ArtistProfile) { p.AvatarURL = "https://a.example/p.jpg" },
		func(p *models.ArtistProfile) { p.LyricThemes = []string{"love"} },
		func(p *models.ArtistProfile) { p.SetFollowerCount(models.CountSpotifyFollowers, 90000) },
	}
	for i, step := range steps {
		step(profile)
		got := Score(profile)
		if got < previous {
			t.Fatalf("step %d decreased score: %f -> %f", i, previous, got)
		}
		previous = got
	}
}

func TestScoreDeterministicAndCapped(t *testing.T) {
	profile := &models.ArtistProfile{
		Name:             "Full House",
		YouTubeChannelID: "UCx",
		InstagramHandle:  "artist",
		SpotifyID:        "abc",
		Email:            "a@b.co",
		Website:          "https://a.example",
		Genres:           []string{"indie"},
		Bio:              strings.Repeat("b", 80),
		AvatarURL:        "https://a.example/p.jpg",
		LyricThemes:      []string{"love"},
	}
	profile.SetFollowerCount(models.CountInstagramFollowers, 20000)
	profile.SetFollowerCount(models.CountSpotifyFollowers, 90000)

	first := Score(profile)
	second := Score(profile.Clone())
	if !scoresClose(first, second) {
		t.Errorf("equal profiles scored differently: %f vs %f", first, second)
	}
	if first != 1 {
		t.Errorf("saturated profile = %f, want 1", first)
	}
}
