// package formatter renders history and track listings as JSON, CSV, Markdown or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/shared"
)

// Format is an export format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// ParseFormat maps a user-supplied name to a [Format]. "md" and "txt" are accepted.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt", "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, name)
	}
}

// Extension returns the file extension conventionally used for f.
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatCSV:
		return ".csv"
	case FormatMarkdown:
		return ".md"
	default:
		return ".txt"
	}
}

func visibility(public bool) string {
	if public {
		return "Public"
	}
	return "Private"
}

// ExportHistory renders history entries in format.
func ExportHistory(entries []models.HistoryEntry, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		if entries == nil {
			entries = []models.HistoryEntry{}
		}
		return shared.MarshalJSON(entries, true)
	case FormatCSV:
		return HistoryToCSV(entries)
	case FormatMarkdown:
		return HistoryToMarkdown(entries)
	default:
		return HistoryToText(entries)
	}
}

// HistoryToCSV converts history entries to CSV with columns: ID, Name, URL, Tracks, Created, Source ID, Source, Visibility, Last Track ID, Last Track
func HistoryToCSV(entries []models.HistoryEntry) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Name", "URL", "Tracks", "Created", "Source ID", "Source", "Visibility", "Last Track ID", "Last Track"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, e := range entries {
		var lastID, lastTitle string
		if e.LastItem != nil {
			lastID = e.LastItem.ID
			lastTitle = e.LastItem.Title
		}
		record := []string{
			e.ID,
			e.Name,
			e.URL,
			strconv.Itoa(e.TrackCount),
			e.CreatedAt.Format(time.RFC3339),
			e.Source.ID,
			e.Source.Name,
			visibility(e.Public),
			lastID,
			lastTitle,
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

// HistoryToMarkdown converts history entries to a Markdown list, newest first.
func HistoryToMarkdown(entries []models.HistoryEntry) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Playlist History\n\n")
	fmt.Fprintf(&buf, "**Playlists**: %d\n\n", len(entries))

	for _, e := range entries {
		name := e.Name
		if e.URL != "" {
			name = fmt.Sprintf("[%s](%s)", e.Name, e.URL)
		}
		fmt.Fprintf(&buf, "## %s\n\n", name)
		fmt.Fprintf(&buf, "- **Created**: %s\n", e.CreatedAt.Format(time.DateOnly))
		if e.Source.Name != "" {
			fmt.Fprintf(&buf, "- **Source**: %s\n", e.Source.Name)
		}
		fmt.Fprintf(&buf, "- **Tracks**: %d\n", e.TrackCount)
		fmt.Fprintf(&buf, "- **Visibility**: %s\n", visibility(e.Public))
		if e.LastItem != nil && e.LastItem.Title != "" {
			fmt.Fprintf(&buf, "- **Last Track**: %s - %s\n", e.LastItem.Artist, e.LastItem.Title)
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// HistoryToText converts history entries to plain text, one line per entry.
func HistoryToText(entries []models.HistoryEntry) ([]byte, error) {
	var buf bytes.Buffer

	if len(entries) == 0 {
		buf.WriteString("No playlists created yet.\n")
		return buf.Bytes(), nil
	}

	for i, e := range entries {
		fmt.Fprintf(&buf, "%d. %s (%d tracks, %s) %s\n", i+1, e.Name, e.TrackCount, e.CreatedAt.Format(time.DateOnly), e.ID)
		if e.Source.Name != "" {
			fmt.Fprintf(&buf, "   from %s\n", e.Source.Name)
		}
	}

	return buf.Bytes(), nil
}

// ExportTracks renders a playlist's tracks in format.
func ExportTracks(playlist models.Playlist, tracks []models.Track, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return shared.MarshalJSON(struct {
			Playlist models.Playlist `json:"playlist"`
			Tracks   []models.Track  `json:"tracks"`
		}{playlist, tracks}, true)
	case FormatCSV:
		return TracksToCSV(tracks)
	case FormatMarkdown:
		return TracksToMarkdown(playlist, tracks, "")
	default:
		return TracksToText(playlist, tracks)
	}
}

// TracksToCSV converts tracks to CSV with columns: Index, ID, URI, Title, Artist, Album, Added
func TracksToCSV(tracks []models.Track) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Index", "ID", "URI", "Title", "Artist", "Album", "Added"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, track := range tracks {
		record := []string{
			strconv.Itoa(i),
			track.ID,
			track.URI,
			track.Title,
			track.Artist(),
			track.Album,
			track.AddedAt.Format(time.RFC3339),
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

// TracksToMarkdown converts a playlist's tracks to Markdown with optional cover image
func TracksToMarkdown(playlist models.Playlist, tracks []models.Track, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", playlist.Name)

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}

	if playlist.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", playlist.Description)
	}

	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(tracks))
	fmt.Fprintf(&buf, "**Visibility**: %s\n\n", visibility(playlist.Public))

	buf.WriteString("## Tracks\n\n")
	for i, track := range tracks {
		albumPart := ""
		if track.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album)
		}
		fmt.Fprintf(&buf, "%d. %s%s [%s]\n", i+1, track, albumPart, track.AddedAt.Format(time.DateOnly))
	}

	return buf.Bytes(), nil
}

// TracksToText converts a playlist's tracks to plain text, numbered from 0 as accepted by --select.
func TracksToText(playlist models.Playlist, tracks []models.Track) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", playlist.Name)
	if playlist.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", playlist.Description)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(tracks))

	for i, track := range tracks {
		fmt.Fprintf(&buf, "%3d. %s  [%s] %s\n", i, track, track.AddedAt.Format(time.DateOnly), track.ID)
	}

	return buf.Bytes(), nil
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// WriteMarkdownExport exports a playlist's tracks to Markdown in a dedicated directory.
//
// Directory name defaults to the playlist ID.
// When the playlist has an image it is downloaded next to the README; a failed download is reported through warn.
// Creates a directory structure: {dir}/README.md and optionally {dir}/cover.jpg
func WriteMarkdownExport(client *http.Client, playlist models.Playlist, tracks []models.Track, outputDir string, warn func(error)) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = playlist.ID
	}
	if warn == nil {
		warn = func(error) {}
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var coverImageFilename string
	if playlist.ImageURL != "" {
		imageData, err := DownloadImage(client, playlist.ImageURL)
		if err != nil {
			warn(fmt.Errorf("failed to download cover image: %w", err))
		} else {
			coverImageFilename = "cover.jpg"
			coverImagePath := filepath.Join(outputDir, coverImageFilename)
			if err := os.WriteFile(coverImagePath, imageData, 0644); err != nil {
				warn(fmt.Errorf("failed to save cover image: %w", err))
				coverImageFilename = ""
			} else {
				result.CoverImage = coverImagePath
				result.Files = append(result.Files, coverImagePath)
			}
		}
	}

	mdData, err := TracksToMarkdown(playlist, tracks, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteFile writes data to path, or to w when path is empty.
func WriteFile(w io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := w.Write(data)
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
