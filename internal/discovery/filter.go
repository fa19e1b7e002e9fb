package discovery

import (
	"regexp"
	"strings"
)

// strongPhrase alone is enough to accept a title.
const strongPhrase = "official music video"

// weakPhrases accept a title only when it also shows an artist-song
// structure.
var weakPhrases = []string{
	"official video",
	"music video",
	"official mv",
	"official audio",
}

// negativeIndicators reject a title outright: these mark covers, fan
// uploads, and non-performance content that slips past the phrase check.
var negativeIndicators = []string{
	"cover",
	"remix by",
	"reaction",
	"tutorial",
	"how to",
	"instrumental",
	"karaoke",
	"mashup",
}

// officialStructureRe matches the "Artist (Official ...)" and
// "Artist [Official ...]" title shapes.
var officialStructureRe = regexp.MustCompile(`(?i)^\s*[^(\[\])]+?\s*[(\[]\s*official`)

// AcceptTitle is the first pipeline gate: it keeps titles that look like an
// artist's own music video upload and drops everything else before the
// costlier stages run.
func AcceptTitle(title string) bool {
	folded := strings.ToLower(title)

	for _, indicator := range negativeIndicators {
		if strings.Contains(folded, indicator) {
			return false
		}
	}

	if strings.Contains(folded, strongPhrase) {
		return true
	}

	var phrased bool
	for _, phrase := range weakPhrases {
		if strings.Contains(folded, phrase) {
			phrased = true
			break
		}
	}
	if !phrased {
		return false
	}
	return hasArtistSongStructure(title)
}

// hasArtistSongStructure reports whether a title splits into an artist part
// and a song part: "A - B", "A | B", "A : B", or "A (Official ...)" /
// "A [Official ...]" with both sides non-empty after trimming.
func hasArtistSongStructure(title string) bool {
	for _, sep := range []string{"-", "|", ":"} {
		idx := strings.Index(title, sep)
		if idx < 0 {
			continue
		}
		left := strings.TrimSpace(title[:idx])
		right := strings.TrimSpace(title[idx+len(sep):])
		if left != "" && right != "" {
			return true
		}
	}
	return officialStructureRe.MatchString(title)
}
