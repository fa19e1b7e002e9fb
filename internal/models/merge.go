package models

// Caps on accumulated list fields. Union order is first-seen, so earlier
// sources keep their slots when the cap trims.
const (
	MaxGenres      = 10
	MaxLyricThemes = 8
)

// MergeProfiles folds src into a copy of dst and returns it. Neither input
// is mutated. The rules keep merged profiles monotonic:
//
//   - identifiers and text fields fill only when dst's field is empty
//   - follower counts take the element-wise maximum
//   - genres and lyric themes union in first-seen order, capped
//   - the enrichment score never decreases
func MergeProfiles(dst, src *ArtistProfile) *ArtistProfile {
	if dst == nil {
		if src == nil {
			return nil
		}
		return src.Clone()
	}
	if src == nil {
		return dst.Clone()
	}

	merged := dst.Clone()

	fill := func(target *string, value string) {
		if *target == "" && value != "" {
			*target = value
		}
	}

	fill(&merged.Name, src.Name)
	fill(&merged.YouTubeChannelID, src.YouTubeChannelID)
	fill(&merged.YouTubeChannelURL, src.YouTubeChannelURL)
	fill(&merged.SpotifyID, src.SpotifyID)
	fill(&merged.InstagramHandle, src.InstagramHandle)
	fill(&merged.TikTokHandle, src.TikTokHandle)
	fill(&merged.TwitterHandle, src.TwitterHandle)
	fill(&merged.Website, src.Website)
	fill(&merged.Email, src.Email)
	fill(&merged.Bio, src.Bio)
	fill(&merged.Location, src.Location)
	fill(&merged.AvatarURL, src.AvatarURL)

	for key, count := range src.FollowerCounts {
		if count > merged.FollowerCount(key) {
			merged.SetFollowerCount(key, count)
		}
	}

	merged.Genres = unionCapped(merged.Genres, src.Genres, MaxGenres)
	merged.LyricThemes = unionCapped(merged.LyricThemes, src.LyricThemes, MaxLyricThemes)

	if src.EnrichmentScore > merged.EnrichmentScore {
		merged.EnrichmentScore = src.EnrichmentScore
		merged.BelowThreshold = src.BelowThreshold
	}

	if merged.DiscoveredAt.IsZero() {
		merged.DiscoveredAt = src.DiscoveredAt
	}
	if src.UpdatedAt.After(merged.UpdatedAt) {
		merged.UpdatedAt = src.UpdatedAt
	}

	return merged
}

// unionCapped appends unseen values from extra onto base, preserving
// first-seen order and stopping at limit.
func unionCapped(base, extra []string, limit int) []string {
	seen := make(map[string]bool, len(base))
	out := make([]string, 0, len(base)+len(extra))

	for _, v := range base {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
		if len(out) == limit {
			return out
		}
	}
	for _, v := range extra {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
		if len(out) == limit {
			return out
		}
	}
	return out
}
