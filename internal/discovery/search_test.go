package discovery

import (
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/desertthunder/scout/internal/shared"
)

func TestComposeDeterministic(t *testing.T) {
	composer := NewTokenComposer("")

	first, err := composer.Compose("emerging indie artists", map[string]string{
		"upload_date": "month",
		"duration":    "short",
		"sort":        "date",
	})
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	second, err := composer.Compose("emerging indie artists", map[string]string{
		"sort":        "date",
		"duration":    "short",
		"upload_date": "month",
	})
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	if first != second {
		t.Errorf("same inputs composed different URLs:\n%s\n%s", first, second)
	}
	if !strings.HasPrefix(first, DefaultSearchHost+"/results?") {
		t.Errorf("url %s not rooted at the default host", first)
	}
}

func TestComposeFilterToken(t *testing.T) {
	composer := NewTokenComposer("https://test.local/")

	composed, err := composer.Compose("new artists", map[string]string{
		"upload_date":  "week",
		"duration":     "short",
		"quality_hint": "any",
	})
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}

	parsed, err := url.Parse(composed)
	if err != nil {
		t.Fatalf("composed url unparseable: %v", err)
	}
	if got := parsed.Query().Get("search_query"); got != "new artists" {
		t.Errorf("search_query = %q, want %q", got, "new artists")
	}

	token := parsed.Query().Get("sp")
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		t.Fatalf("sp token not base64url: %v", err)
	}
	// sorted pairs, "any" dropped
	if got, want := string(decoded), "duration=short&upload_date=week"; got != want {
		t.Errorf("token = %q, want %q", got, want)
	}
}

func TestComposeOmitsEmptyToken(t *testing.T) {
	composer := NewTokenComposer("https://test.local")

	for _, filters := range []map[string]string{
		nil,
		{},
		{"upload_date": "any", "sort": "any"},
	} {
		composed, err := composer.Compose("q", filters)
		if err != nil {
			t.Fatalf("compose failed: %v", err)
		}
		parsed, _ := url.Parse(composed)
		if parsed.Query().Has("sp") {
			t.Errorf("filters %v produced sp param in %s", filters, composed)
		}
	}
}

func TestComposeRejectsEmptyQuery(t *testing.T) {
	composer := NewTokenComposer("")
	if _, err := composer.Compose("   ", nil); !errors.Is(err, shared.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestValidateFilters(t *testing.T) {
	tests := []struct {
		name    string
		filters map[string]string
		ok      bool
	}{
		{"nil", nil, true},
		{"all known", map[string]string{"upload_date": "month", "duration": "long", "sort": "views", "quality_hint": "hd"}, true},
		{"any everywhere", map[string]string{"upload_date": "any", "duration": "any"}, true},
		{"case folded value", map[string]string{"sort": "Views"}, true},
		{"unknown key", map[string]string{"region": "us"}, false},
		{"bad value", map[string]string{"duration": "medium"}, false},
		{"bad value among good", map[string]string{"sort": "date", "upload_date": "decade"}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateFilters(tc.filters)
			if tc.ok && err != nil {
				t.Errorf("expected filters to validate, got %v", err)
			}
			if !tc.ok {
				if !errors.Is(err, shared.ErrInvalidFlag) {
					t.Errorf("expected ErrInvalidFlag, got %v", err)
				}
			}
		})
	}
}

func TestComposerHostFallback(t *testing.T) {
	if got := NewTokenComposer("").host; got != DefaultSearchHost {
		t.Errorf("empty host = %q, want default", got)
	}
	if got := NewTokenComposer("https://mirror.example/").host; got != "https://mirror.example" {
		t.Errorf("trailing slash kept: %q", got)
	}
}
