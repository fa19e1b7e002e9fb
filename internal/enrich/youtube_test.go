package enrich

import (
	"context"
	"strings"
	"testing"

	"github.com/desertthunder/scout/internal/models"
)

const ytAboutBody = `<html><body><script>
{"externalId":"UCabcdefghijklmnopqrstuv","subscriberCount":"15400",
"description":"Portland synth pop.\nBooking: booking@alicemusic.com\nIG: https://www.youtube.com/redirect?event=channel_description&q=https%3A%2F%2Finstagram.com%2Falice.music"}
</script></body></html>`

func TestYouTubeChannelEnrich(t *testing.T) {
	fetcher := &fakePageFetcher{pages: map[string]string{
		"https://www.youtube.com/@alicemusic/about": ytAboutBody,
	}}
	src := NewYouTubeChannelSource(Deps{Fetcher: fetcher})

	seed := &models.ArtistProfile{
		Name:              "Alice",
		YouTubeChannelURL: "https://www.youtube.com/@alicemusic",
	}
	result, err := src.Enrich(context.Background(), seed)
	if err != nil {
		t.Fatalf("Enrich returned error: %v", err)
	}

	partial := result.Partial
	if partial.YouTubeChannelID != "UCabcdefghijklmnopqrstuv" {
		t.Errorf("channel ID = %q, want mined externalId", partial.YouTubeChannelID)
	}
	if got := partial.FollowerCount(models.CountYouTubeSubscribers); got != 15400 {
		t.Errorf("subscribers = %d, want 15400", got)
	}
	if !strings.Contains(partial.Bio, "Portland synth pop") {
		t.Errorf("Bio = %q", partial.Bio)
	}
	if partial.InstagramHandle != "alice.music" {
		t.Errorf("InstagramHandle = %q, want alice.music (unwrapped from redirect)", partial.InstagramHandle)
	}
	if partial.Email != "booking@alicemusic.com" {
		t.Errorf("Email = %q, want booking@alicemusic.com", partial.Email)
	}
}

func TestYouTubeSubscriberTextFallback(t *testing.T) {
	body := `<html><body><span>1.2K subscribers</span></body></html>`
	fetcher := &fakePageFetcher{pages: map[string]string{
		"https://www.youtube.com/channel/UCabcdefghijklmnopqrstuv/about": body,
	}}
	src := NewYouTubeChannelSource(Deps{Fetcher: fetcher})

	seed := &models.ArtistProfile{Name: "Alice", YouTubeChannelID: "UCabcdefghijklmnopqrstuv"}
	result, err := src.Enrich(context.Background(), seed)
	if err != nil {
		t.Fatalf("Enrich returned error: %v", err)
	}
	if got := result.Partial.FollowerCount(models.CountYouTubeSubscribers); got != 1200 {
		t.Errorf("subscribers = %d, want 1200", got)
	}
}

func TestYouTubeEligibility(t *testing.T) {
	src := NewYouTubeChannelSource(Deps{})

	tc := []struct {
		name string
		seed *models.ArtistProfile
		want bool
	}{
		{"channel id", &models.ArtistProfile{YouTubeChannelID: "UCabcdefghijklmnopqrstuv"}, true},
		{"channel url", &models.ArtistProfile{YouTubeChannelURL: "https://www.youtube.com/@x"}, true},
		{"name only", &models.ArtistProfile{Name: "Alice"}, true},
		{"empty seed", &models.ArtistProfile{}, false},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := src.Eligible(tt.seed); got != tt.want {
				t.Errorf("Eligible = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestYouTubeVanityCascade(t *testing.T) {
	body := `<html><body><script>{"externalId":"UCabcdefghijklmnopqrstuv","subscriberCount":"900"}</script></body></html>`
	fetcher := &fakePageFetcher{pages: map[string]string{
		"https://www.youtube.com/user/alicemusic/about": body,
	}}
	src := NewYouTubeChannelSource(Deps{Fetcher: fetcher})

	result, err := src.Enrich(context.Background(), &models.ArtistProfile{Name: "Alice Music"})
	if err != nil {
		t.Fatalf("Enrich returned error: %v", err)
	}
	if result.Partial.YouTubeChannelID != "UCabcdefghijklmnopqrstuv" {
		t.Errorf("channel ID = %q", result.Partial.YouTubeChannelID)
	}

	wantOrder := []string{
		"https://www.youtube.com/@alicemusic/about",
		"https://www.youtube.com/c/alicemusic/about",
		"https://www.youtube.com/user/alicemusic/about",
	}
	if len(fetcher.calls) != len(wantOrder) {
		t.Fatalf("fetch calls = %d, want %d", len(fetcher.calls), len(wantOrder))
	}
	for i, want := range wantOrder {
		if fetcher.calls[i].url != want {
			t.Errorf("call %d = %q, want %q", i, fetcher.calls[i].url, want)
		}
	}
}
