package discovery

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/desertthunder/scout/internal/shared"
)

// DefaultSearchHost is the search surface harvested when no host is
// configured.
const DefaultSearchHost = "https://www.youtube.com"

// filterOptions enumerates the recognized filter keys and their values.
// "any" is accepted everywhere and means "no constraint".
var filterOptions = map[string]map[string]bool{
	"upload_date":  {"any": true, "hour": true, "today": true, "week": true, "month": true, "year": true},
	"duration":     {"any": true, "short": true, "long": true},
	"sort":         {"any": true, "relevance": true, "date": true, "views": true, "rating": true},
	"quality_hint": {"any": true, "hd": true, "4k": true},
}

// ValidateFilters rejects unknown filter keys and out-of-range values
// before a session is allocated.
func ValidateFilters(filters map[string]string) error {
	for key, value := range filters {
		options, ok := filterOptions[key]
		if !ok {
			return fmt.Errorf("unknown filter %q: %w", key, shared.ErrInvalidFlag)
		}
		if !options[strings.ToLower(value)] {
			return fmt.Errorf("filter %s does not accept %q: %w", key, value, shared.ErrInvalidFlag)
		}
	}
	return nil
}

// URLComposer builds the search URL for a query and filter set. Equal
// inputs must produce equal URLs so results can be cached by URL.
type URLComposer interface {
	Compose(query string, filters map[string]string) (string, error)
}

// TokenComposer is the default [URLComposer]. The sp parameter carries the
// filter set as a base64url token of the sorted key-value pairs, which is
// readable, deterministic, and swappable for a protocol-faithful encoder
// later.
type TokenComposer struct {
	host string
}

// NewTokenComposer builds a composer for a search host. An empty host
// falls back to [DefaultSearchHost].
func NewTokenComposer(host string) *TokenComposer {
	if host == "" {
		host = DefaultSearchHost
	}
	return &TokenComposer{host: strings.TrimRight(host, "/")}
}

// Compose implements [URLComposer].
func (c *TokenComposer) Compose(query string, filters map[string]string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("empty search query: %w", shared.ErrInvalidInput)
	}
	if err := ValidateFilters(filters); err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("search_query", query)
	if token := filterToken(filters); token != "" {
		params.Set("sp", token)
	}
	params.Set("gl", "us")
	params.Set("hl", "en")

	return c.host + "/results?" + params.Encode(), nil
}

// filterToken encodes the effective filters. Keys are sorted so identical
// filter sets always produce the same token; "any" values constrain
// nothing and are dropped.
func filterToken(filters map[string]string) string {
	pairs := make([]string, 0, len(filters))
	for key, value := range filters {
		value = strings.ToLower(value)
		if value == "any" {
			continue
		}
		pairs = append(pairs, key+"="+value)
	}
	if len(pairs) == 0 {
		return ""
	}
	sort.Strings(pairs)
	return base64.RawURLEncoding.EncodeToString([]byte(strings.Join(pairs, "&")))
}
