package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/scout/internal/models"
	"github.com/desertthunder/scout/internal/shared"
)

const defaultAnalyzerTimeout = 30 * time.Second

// RemoteAnalyzer posts lyrics to a hosted analysis endpoint. Selected when
// an analyzer API key is configured; [KeywordAnalyzer] is the fallback.
type RemoteAnalyzer struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewRemoteAnalyzer creates a client for the hosted analyzer.
func NewRemoteAnalyzer(endpoint, apiKey string) (*RemoteAnalyzer, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("missing analyzer endpoint: %w", shared.ErrMissingConfig)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("missing analyzer API key: %w", shared.ErrMissingCredentials)
	}

	return &RemoteAnalyzer{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultAnalyzerTimeout},
	}, nil
}

type analyzeRequest struct {
	Text         string `json:"text"`
	LanguageHint string `json:"language_hint,omitzero"`
}

type analyzeResponse struct {
	Themes    []string `json:"themes"`
	Sentiment float64  `json:"sentiment"`
	Language  string   `json:"language"`
}

// AnalyzeLyrics implements [Analyzer]. The endpoint is expected to be
// deterministic for identical text, so responses are safe to cache.
func (a *RemoteAnalyzer) AnalyzeLyrics(ctx context.Context, text, languageHint string) (*models.LyricAnalysis, error) {
	cleaned := CleanLyrics(text)
	if len(cleaned) < MinLyricsLength {
		return nil, fmt.Errorf("lyrics too short after cleaning (%d chars): %w", len(cleaned), shared.ErrDataQuality)
	}

	var result analyzeResponse
	if err := a.doRequest(ctx, analyzeRequest{Text: cleaned, LanguageHint: languageHint}, &result); err != nil {
		return nil, err
	}

	if result.Sentiment < -1 || result.Sentiment > 1 {
		return nil, fmt.Errorf("analyzer returned sentiment %f outside [-1, 1]: %w", result.Sentiment, shared.ErrDataQuality)
	}
	if len(result.Themes) > MaxThemes {
		result.Themes = result.Themes[:MaxThemes]
	}

	return &models.LyricAnalysis{
		Themes:    result.Themes,
		Sentiment: result.Sentiment,
		Language:  result.Language,
	}, nil
}

// doRequest performs an authenticated POST to the analyzer endpoint.
func (a *RemoteAnalyzer) doRequest(ctx context.Context, body, result any) error {
	payload := new(bytes.Buffer)
	if err := json.NewEncoder(payload).Encode(body); err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, payload)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("analyzer API status %d: %w", resp.StatusCode, shared.ErrRateLimited)
	case resp.StatusCode >= 500:
		return fmt.Errorf("analyzer API status %d: %w", resp.StatusCode, shared.ErrUpstream)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("analyzer API error: status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
