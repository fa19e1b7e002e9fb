package enrich

import (
	"context"
	"testing"

	"github.com/desertthunder/scout/internal/fetch"
	"github.com/desertthunder/scout/internal/models"
)

func TestTikTokEnrich(t *testing.T) {
	body := `<html><body><script id="state">
{"followerCount":45200,"heartCount":893000,"signature":"bedroom pop · new single out now"}
</script></body></html>`

	fetcher := &fakePageFetcher{pages: map[string]string{
		"https://www.tiktok.com/@alicemusic": body,
	}}
	src := NewTikTokSource(Deps{Fetcher: fetcher})

	result, err := src.Enrich(context.Background(), &models.ArtistProfile{Name: "Alice", TikTokHandle: "@AliceMusic"})
	if err != nil {
		t.Fatalf("Enrich returned error: %v", err)
	}

	partial := result.Partial
	if partial.TikTokHandle != "alicemusic" {
		t.Errorf("handle = %q, want alicemusic", partial.TikTokHandle)
	}
	if got := partial.FollowerCount(models.CountTikTokFollowers); got != 45200 {
		t.Errorf("followers = %d, want 45200", got)
	}
	if got := partial.FollowerCount(models.CountTikTokLikes); got != 893000 {
		t.Errorf("likes = %d, want 893000", got)
	}
	if partial.Bio == "" {
		t.Error("signature not extracted")
	}
}

func TestTikTokOGFallback(t *testing.T) {
	body := `<html><head>
<meta property="og:description" content="Alice (@alicemusic) on TikTok | 1.2M Followers. 45.6M Likes. bedroom pop."/>
</head><body>shell</body></html>`

	fetcher := &fakePageFetcher{pages: map[string]string{
		"https://www.tiktok.com/@alicemusic": body,
	}}
	src := NewTikTokSource(Deps{Fetcher: fetcher})

	result, err := src.Enrich(context.Background(), &models.ArtistProfile{Name: "Alice", TikTokHandle: "alicemusic"})
	if err != nil {
		t.Fatalf("Enrich returned error: %v", err)
	}
	if got := result.Partial.FollowerCount(models.CountTikTokFollowers); got != 1200000 {
		t.Errorf("followers = %d, want 1200000", got)
	}
	if got := result.Partial.FollowerCount(models.CountTikTokLikes); got != 45600000 {
		t.Errorf("likes = %d, want 45600000", got)
	}
}

func TestTikTokHeadlessRetryOnEmptyShell(t *testing.T) {
	profileURL := "https://www.tiktok.com/@alicemusic"
	fetcher := &fakePageFetcher{seq: map[string][]string{
		profileURL: {
			`<html><body></body></html>`,
			`<html><body>{"followerCount":777}</body></html>`,
		},
	}}
	src := NewTikTokSource(Deps{Fetcher: fetcher})

	result, err := src.Enrich(context.Background(), &models.ArtistProfile{Name: "Alice", TikTokHandle: "alicemusic"})
	if err != nil {
		t.Fatalf("Enrich returned error: %v", err)
	}
	if got := result.Partial.FollowerCount(models.CountTikTokFollowers); got != 777 {
		t.Errorf("followers = %d, want 777", got)
	}
	if fetcher.calls[1].hints.StartAt != fetch.StrategyHeadless {
		t.Errorf("second fetch hints = %+v, want headless start", fetcher.calls[1].hints)
	}
}
