// package formatter renders discovery output for the CLI: NDJSON event
// streams, session summaries, and artist exports (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/scout/internal/models"
	"github.com/desertthunder/scout/internal/shared"
)

// EventWriter streams progress events as NDJSON, one event per line. It is
// written from a single consumer goroutine.
type EventWriter struct {
	enc *json.Encoder
}

// NewEventWriter creates an [EventWriter] targeting w, usually stdout.
func NewEventWriter(w io.Writer) *EventWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &EventWriter{enc: enc}
}

// Write emits one event line.
func (e *EventWriter) Write(event models.ProgressEvent) error {
	return e.enc.Encode(event)
}

// EventText renders one progress event as a human-readable line for the
// pretty CLI stream.
func EventText(event models.ProgressEvent) string {
	switch event.Kind {
	case models.EventSessionStarted:
		return fmt.Sprintf("▸ session %s started: %s", shared.ShortID(event.SessionID), event.Message)
	case models.EventPhaseProgress:
		return fmt.Sprintf("▸ %s: %s", event.Phase, event.Message)
	case models.EventCandidateFound:
		return fmt.Sprintf("· candidate %q", videoTitle(event))
	case models.EventArtistRejected:
		line := fmt.Sprintf("- rejected %q (%s)", videoTitle(event), event.Reason)
		if event.Message != "" {
			line += ": " + event.Message
		}
		return line
	case models.EventArtistAccepted:
		return fmt.Sprintf("+ accepted %s", artistName(event))
	case models.EventArtistEnriched:
		line := fmt.Sprintf("~ enriched %s", artistName(event))
		if event.Message != "" {
			line += " (" + event.Message + ")"
		}
		return line
	case models.EventArtistStored:
		if event.Artist != nil {
			return fmt.Sprintf("✓ stored %s (score %.2f)", event.Artist.Name, event.Artist.EnrichmentScore)
		}
		return "✓ stored"
	case models.EventSessionCompleted:
		if event.Summary != nil {
			return fmt.Sprintf("✓ session completed: %d artists stored in %s",
				event.Summary.ArtistsStored, shared.FormatDuration(event.Summary.DurationMS))
		}
		return "✓ session completed"
	case models.EventSessionFailed:
		kind := event.ErrorKind
		if kind == "" {
			kind = "unknown"
		}
		return fmt.Sprintf("✗ session failed [%s]: %s", kind, event.Message)
	case models.EventLagged:
		return fmt.Sprintf("! stream lagged, %d events dropped", event.Dropped)
	default:
		return string(event.Kind)
	}
}

func videoTitle(event models.ProgressEvent) string {
	if event.Video != nil {
		return event.Video.Title
	}
	return ""
}

func artistName(event models.ProgressEvent) string {
	if event.Artist != nil {
		return event.Artist.Name
	}
	return ""
}

// SessionText converts a session snapshot to plain text.
func SessionText(session *models.Session) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Session: %s\n", session.ID))
	buf.WriteString(fmt.Sprintf("Query: %s\n", session.Request.Query))
	if len(session.Request.Filters) > 0 {
		buf.WriteString(fmt.Sprintf("Filters: %s\n", formatFilters(session.Request.Filters)))
	}
	buf.WriteString(fmt.Sprintf("State: %s\n", session.State))
	buf.WriteString(fmt.Sprintf("Started: %s\n", session.StartedAt.Format(time.RFC3339)))
	if !session.EndedAt.IsZero() {
		buf.WriteString(fmt.Sprintf("Ended: %s (%s)\n", session.EndedAt.Format(time.RFC3339),
			shared.FormatDuration(session.EndedAt.Sub(session.StartedAt).Milliseconds())))
	}

	buf.WriteString("\n")
	buf.WriteString(fmt.Sprintf("Videos seen: %d\n", session.Counters.VideosSeen))
	buf.WriteString(fmt.Sprintf("Videos accepted: %d\n", session.Counters.VideosAccepted))
	buf.WriteString(fmt.Sprintf("Artists enriched: %d\n", session.Counters.ArtistsEnriched))
	buf.WriteString(fmt.Sprintf("Artists stored: %d\n", session.Counters.ArtistsStored))
	buf.WriteString(fmt.Sprintf("Below threshold: %d\n", session.Counters.BelowThreshold))
	buf.WriteString(fmt.Sprintf("Cost spent: %d\n", session.Counters.CostSpent))

	if session.BudgetExhausted {
		buf.WriteString("Budget exhausted: yes\n")
	}
	if session.LastError != "" {
		buf.WriteString(fmt.Sprintf("Last error: %s\n", session.LastError))
	}

	return buf.Bytes()
}

// SessionMarkdown converts a session snapshot to Markdown with a counters
// table.
func SessionMarkdown(session *models.Session) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# Discovery Session %s\n\n", shared.ShortID(session.ID)))
	buf.WriteString(fmt.Sprintf("**Query**: %s\n", session.Request.Query))
	if len(session.Request.Filters) > 0 {
		buf.WriteString(fmt.Sprintf("**Filters**: %s\n", formatFilters(session.Request.Filters)))
	}
	buf.WriteString(fmt.Sprintf("**State**: %s\n", session.State))
	buf.WriteString(fmt.Sprintf("**Started**: %s\n", session.StartedAt.Format(time.RFC3339)))
	if !session.EndedAt.IsZero() {
		buf.WriteString(fmt.Sprintf("**Duration**: %s\n",
			shared.FormatDuration(session.EndedAt.Sub(session.StartedAt).Milliseconds())))
	}
	if session.LastError != "" {
		buf.WriteString(fmt.Sprintf("**Last error**: %s\n", session.LastError))
	}

	buf.WriteString("\n## Counters\n\n")
	buf.WriteString("| Counter | Value |\n")
	buf.WriteString("| --- | --- |\n")
	buf.WriteString(fmt.Sprintf("| Videos seen | %d |\n", session.Counters.VideosSeen))
	buf.WriteString(fmt.Sprintf("| Videos accepted | %d |\n", session.Counters.VideosAccepted))
	buf.WriteString(fmt.Sprintf("| Artists enriched | %d |\n", session.Counters.ArtistsEnriched))
	buf.WriteString(fmt.Sprintf("| Artists stored | %d |\n", session.Counters.ArtistsStored))
	buf.WriteString(fmt.Sprintf("| Below threshold | %d |\n", session.Counters.BelowThreshold))
	buf.WriteString(fmt.Sprintf("| Cost spent | %d |\n", session.Counters.CostSpent))

	return buf.Bytes()
}

// ArtistsToCSV converts discovered artists to CSV with columns: ID, Name,
// Score, YouTube Channel, Spotify ID, Instagram, TikTok, Email, Website,
// Genres, Themes, Discovered
func ArtistsToCSV(artists []*models.ArtistProfile) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Name", "Score", "YouTube Channel", "Spotify ID", "Instagram", "TikTok", "Email", "Website", "Genres", "Themes", "Discovered"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, artist := range artists {
		discovered := ""
		if !artist.DiscoveredAt.IsZero() {
			discovered = artist.DiscoveredAt.Format(time.RFC3339)
		}
		record := []string{
			artist.ID,
			artist.Name,
			strconv.FormatFloat(artist.EnrichmentScore, 'f', 2, 64),
			artist.YouTubeChannelID,
			artist.SpotifyID,
			artist.InstagramHandle,
			artist.TikTokHandle,
			artist.Email,
			artist.Website,
			strings.Join(artist.Genres, "; "),
			strings.Join(artist.LyricThemes, "; "),
			discovered,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportResult contains the paths of files created by WriteArtistExport.
type ExportResult struct {
	CSVFile  string
	JSONFile string
}

// WriteArtistExport writes discovered artists to disk as a CSV and JSON
// pair: {base}_artists.csv and {base}_artists.json.
//
// The base filename defaults to "scout".
func WriteArtistExport(artists []*models.ArtistProfile, baseFilepath string) (*ExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = "scout"
	}

	csvData, err := ArtistsToCSV(artists)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	csvFile := baseFilepath + "_artists.csv"
	if err := os.WriteFile(csvFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	jsonData, err := shared.MarshalJSON(artists, true)
	if err != nil {
		return nil, fmt.Errorf("failed to generate JSON: %w", err)
	}

	jsonFile := baseFilepath + "_artists.json"
	if err := os.WriteFile(jsonFile, jsonData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write JSON file: %w", err)
	}

	return &ExportResult{
		CSVFile:  csvFile,
		JSONFile: jsonFile,
	}, nil
}

func formatFilters(filters map[string]string) string {
	pairs := make([]string, 0, len(filters))
	for key, value := range filters {
		pairs = append(pairs, key+"="+value)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ", ")
}
