package discovery

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/desertthunder/scout/internal/models"
	"github.com/desertthunder/scout/internal/shared"
)

// Extracted names outside these bounds are noise, not artists.
const (
	minNameRunes = 2
	maxNameRunes = 50
)

// genericNames are title prefixes that name a platform fixture rather than
// an artist.
var genericNames = map[string]bool{
	"various artists": true,
	"vevo":            true,
	"topic":           true,
}

var bareYearRe = regexp.MustCompile(`^(?:19|20)\d{2}$`)

// featuredPatterns strip collaborators from a raw artist segment, applied
// in order. The connective forms (&, +, and, x, comma) only strip when the
// next word is capitalized so band names like "Florence and the Machine"
// survive.
var featuredPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s+(?:feat\.?|featuring|ft\.?)\s+.+$`),
	regexp.MustCompile(`(?i)\s+(?:with|w/)\s+.+$`),
	regexp.MustCompile(`(?i)\s+(?:vs\.?|versus)\s+.+$`),
	regexp.MustCompile(`\s+(?:&|\+|[Aa]nd)\s+[A-Z].+$`),
	regexp.MustCompile(`\s+[xX]\s+[A-Z].+$`),
	regexp.MustCompile(`\s*,\s*[A-Z].+$`),
}

const quoteCutset = "\"'“”‘’ \t"

// ExtractArtistName derives the canonical artist name from a video title
// that passed the gate: the segment before the first artist-song separator,
// quotes stripped, featured artists removed.
func ExtractArtistName(title string) (string, error) {
	raw := strings.Trim(artistSegment(title), quoteCutset)
	name := strings.Trim(StripFeatured(raw), quoteCutset)

	switch {
	case name == "" || allPunctuation(name):
		return "", fmt.Errorf("title %q yields no artist name: %w", title, shared.ErrDataQuality)
	case genericNames[strings.ToLower(name)]:
		return "", fmt.Errorf("artist name %q is a platform fixture: %w", name, shared.ErrDataQuality)
	case utf8.RuneCountInString(name) < minNameRunes || utf8.RuneCountInString(name) > maxNameRunes:
		return "", fmt.Errorf("artist name %q outside length bounds: %w", name, shared.ErrDataQuality)
	case bareYearRe.MatchString(name):
		return "", fmt.Errorf("artist name %q is a year: %w", name, shared.ErrDataQuality)
	}
	return name, nil
}

// artistSegment returns the title text before the first separator outside
// parentheses and brackets. A separator needs whitespace on one side, which
// keeps hyphenated names like "Jay-Z" whole. Titles with no separator fall
// back to the text before the first group, and failing that the whole
// title.
func artistSegment(title string) string {
	depth := 0
	groupStart := -1
	runes := []rune(title)

	for i, r := range runes {
		switch r {
		case '(', '[':
			if depth == 0 && groupStart < 0 {
				groupStart = i
			}
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		case '-', '|', ':':
			if depth != 0 {
				continue
			}
			spacedBefore := i > 0 && unicode.IsSpace(runes[i-1])
			spacedAfter := i+1 < len(runes) && unicode.IsSpace(runes[i+1])
			if spacedBefore || spacedAfter {
				return string(runes[:i])
			}
		}
	}

	if groupStart >= 0 {
		return string(runes[:groupStart])
	}
	return title
}

// StripFeatured removes featured-artist and collaboration suffixes, keeping
// the leftmost artist. When stripping would leave nothing usable the input
// is returned unchanged.
func StripFeatured(name string) string {
	stripped := name
	for _, pattern := range featuredPatterns {
		stripped = pattern.ReplaceAllString(stripped, "")
	}
	stripped = strings.TrimRight(strings.TrimSpace(stripped), ",")

	if utf8.RuneCountInString(stripped) < minNameRunes {
		return name
	}
	return stripped
}

func allPunctuation(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// SeedProfile builds the initial profile for an accepted candidate: the
// extracted name, the candidate's channel identity, and whatever contact
// and social data its description snippet yields.
func SeedProfile(video models.CandidateVideo) (*models.ArtistProfile, error) {
	name, err := ExtractArtistName(video.Title)
	if err != nil {
		return nil, err
	}

	profile := &models.ArtistProfile{
		Name:              name,
		YouTubeChannelID:  video.ChannelID,
		YouTubeChannelURL: video.ChannelURL,
	}

	if video.Description != "" {
		text := models.UnwrapRedirects(video.Description)
		links := models.ParseSocialLinks(text)
		profile.InstagramHandle = links.Instagram
		profile.TikTokHandle = links.TikTok
		profile.TwitterHandle = links.Twitter
		profile.SpotifyID = links.Spotify
		profile.Website = links.Website
		profile.Email = models.ParseEmail(text)
		if profile.YouTubeChannelID == "" && links.YouTube != "" && !strings.HasPrefix(links.YouTube, "@") {
			profile.YouTubeChannelID = links.YouTube
		}
	}

	return profile, nil
}
