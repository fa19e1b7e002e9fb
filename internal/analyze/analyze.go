// Package analyze produces lyric analyses for the enrichment pipeline.
//
// The [Analyzer] interface is the port the pipeline consumes. Two
// implementations exist: [KeywordAnalyzer], a deterministic table-driven
// analyzer that needs no credentials, and [RemoteAnalyzer], which posts the
// text to a hosted analysis endpoint. Both are deterministic for a given
// text up to rounding.
package analyze

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/desertthunder/scout/internal/models"
	"github.com/desertthunder/scout/internal/shared"
)

// MinLyricsLength is the shortest text worth analyzing. Shorter inputs are
// usually extraction noise, not lyrics.
const MinLyricsLength = 50

// MaxThemes caps the themes reported for one song.
const MaxThemes = 5

// Analyzer turns a lyrics text into a LyricAnalysis.
type Analyzer interface {
	AnalyzeLyrics(ctx context.Context, text, languageHint string) (*models.LyricAnalysis, error)
}

var (
	bracketedText     = regexp.MustCompile(`\[[^\]]*\]`)
	parenthesizedText = regexp.MustCompile(`\([^)]*\)`)
	wordSplit         = regexp.MustCompile(`[^\p{L}\p{N}']+`)
)

// themeKeywords maps each recognized theme to the words that signal it.
var themeKeywords = map[string][]string{
	"love":          {"love", "heart", "kiss", "together", "forever", "baby", "darling", "romance"},
	"heartbreak":    {"broken", "tears", "goodbye", "lonely", "miss", "pain", "cry", "hurt"},
	"success":       {"money", "rich", "gold", "win", "top", "boss", "crown", "shine"},
	"party":         {"party", "dance", "club", "night", "drink", "fun", "celebrate", "weekend"},
	"struggle":      {"fight", "hard", "struggle", "survive", "grind", "hustle", "battle", "rise"},
	"friendship":    {"friend", "crew", "squad", "team", "brother", "sister", "homie", "loyal"},
	"family":        {"family", "mother", "father", "mama", "home", "blood", "roots", "son"},
	"spirituality":  {"god", "faith", "pray", "heaven", "soul", "blessed", "spirit", "believe"},
	"social_issues": {"streets", "system", "justice", "change", "world", "people", "truth", "free"},
}

var positiveWords = map[string]bool{
	"love": true, "happy": true, "joy": true, "good": true, "great": true,
	"beautiful": true, "amazing": true, "wonderful": true, "best": true,
	"smile": true, "shine": true, "dream": true, "hope": true, "free": true,
	"alive": true, "blessed": true, "win": true, "gold": true,
}

var negativeWords = map[string]bool{
	"hate": true, "sad": true, "pain": true, "hurt": true, "broken": true,
	"cry": true, "tears": true, "lonely": true, "dark": true, "fear": true,
	"lost": true, "dead": true, "kill": true, "war": true, "bad": true,
	"worst": true, "goodbye": true, "cold": true,
}

// stopwords back the language guess: the language whose function words
// appear most often wins.
var stopwords = map[string]map[string]bool{
	"en": wordSet("the", "and", "you", "that", "for", "are", "with", "this", "have", "from", "they", "know", "want", "been", "your", "what"),
	"es": wordSet("que", "de", "no", "la", "el", "en", "es", "los", "se", "del", "las", "un", "por", "con", "una", "para"),
	"fr": wordSet("le", "de", "et", "un", "il", "être", "en", "avoir", "que", "pour", "dans", "ce", "son", "une", "sur", "pas"),
}

func wordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// KeywordAnalyzer is the built-in deterministic analyzer. It scores themes
// by keyword frequency, sentiment by the balance of positive and negative
// words, and language by stopword counts.
type KeywordAnalyzer struct{}

// NewKeywordAnalyzer returns the table-driven analyzer.
func NewKeywordAnalyzer() *KeywordAnalyzer {
	return &KeywordAnalyzer{}
}

// AnalyzeLyrics implements [Analyzer].
func (a *KeywordAnalyzer) AnalyzeLyrics(ctx context.Context, text, languageHint string) (*models.LyricAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cleaned := CleanLyrics(text)
	if len(cleaned) < MinLyricsLength {
		return nil, fmt.Errorf("lyrics too short after cleaning (%d chars): %w", len(cleaned), shared.ErrDataQuality)
	}

	words := tokenize(cleaned)

	language := languageHint
	if language == "" {
		language = detectLanguage(words)
	}

	return &models.LyricAnalysis{
		Themes:    detectThemes(words),
		Sentiment: scoreSentiment(words),
		Language:  language,
	}, nil
}

// CleanLyrics strips section markers and ad-lib parentheticals, collapses
// whitespace, and drops consecutive duplicate lines (choruses repeat).
func CleanLyrics(text string) string {
	text = bracketedText.ReplaceAllString(text, " ")
	text = parenthesizedText.ReplaceAllString(text, " ")

	var lines []string
	var previous string
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" || line == previous {
			continue
		}
		lines = append(lines, line)
		previous = line
	}
	return strings.Join(lines, "\n")
}

func tokenize(text string) []string {
	raw := wordSplit.Split(strings.ToLower(text), -1)
	words := raw[:0]
	for _, w := range raw {
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}

// detectThemes counts keyword hits per theme and returns the strongest,
// capped at [MaxThemes]. Ties break alphabetically so results are stable.
func detectThemes(words []string) []string {
	counts := make(map[string]int)
	for _, word := range words {
		for theme, keywords := range themeKeywords {
			for _, keyword := range keywords {
				if word == keyword {
					counts[theme]++
					break
				}
			}
		}
	}

	themes := make([]string, 0, len(counts))
	for theme := range counts {
		themes = append(themes, theme)
	}
	sort.Slice(themes, func(i, j int) bool {
		if counts[themes[i]] != counts[themes[j]] {
			return counts[themes[i]] > counts[themes[j]]
		}
		return themes[i] < themes[j]
	})

	if len(themes) > MaxThemes {
		themes = themes[:MaxThemes]
	}
	return themes
}

// scoreSentiment returns (positive − negative) / words, clamped to [-1, 1].
func scoreSentiment(words []string) float64 {
	if len(words) == 0 {
		return 0
	}

	var positive, negative int
	for _, word := range words {
		if positiveWords[word] {
			positive++
		}
		if negativeWords[word] {
			negative++
		}
	}

	score := float64(positive-negative) / float64(len(words))
	return max(-1, min(1, score))
}

func detectLanguage(words []string) string {
	best, bestHits := "en", 0
	for _, language := range []string{"en", "es", "fr"} {
		hits := 0
		for _, word := range words {
			if stopwords[language][word] {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = language, hits
		}
	}
	return best
}
