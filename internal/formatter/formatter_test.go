package formatter

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/shared"
	th "github.com/desertthunder/spm/internal/testing"
)

var created = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func historyFixture() []models.HistoryEntry {
	return []models.HistoryEntry{
		{
			ID:         "pl1",
			Name:       "New - Mix - 2024-03-01 ✨",
			URL:        "https://open.spotify.com/playlist/pl1",
			TrackCount: 12,
			CreatedAt:  created,
			Source:     models.SourceRef{ID: "src", Name: "Mix"},
			Public:     true,
			LastItem:   &models.LastItem{ID: "t0", Title: "Song One", Artist: "Artist One"},
		},
		{
			ID:         "pl2",
			Name:       "Imported, with comma",
			TrackCount: 3,
			CreatedAt:  created.Add(-48 * time.Hour),
		},
	}
}

func tracksFixture() (models.Playlist, []models.Track) {
	playlist := models.Playlist{
		ID:          "test123",
		Name:        "Test Playlist",
		Description: "A test playlist",
		TrackCount:  2,
		Public:      true,
	}
	tracks := []models.Track{
		{ID: "track1", URI: "spotify:track:track1", Title: "Song One", Artists: []string{"Artist One"}, Album: "Album One", AddedAt: created},
		{ID: "track2", URI: "spotify:track:track2", Title: "Song Two", Artists: []string{"Artist Two", "Guest"}, AddedAt: created.Add(-time.Hour)},
	}
	return playlist, tracks
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input string
		want  Format
	}{
		{"json", FormatJSON},
		{"CSV", FormatCSV},
		{"md", FormatMarkdown},
		{"markdown", FormatMarkdown},
		{"", FormatText},
		{"txt", FormatText},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.input)
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", tt.input, got, err, tt.want)
		}
	}

	if _, err := ParseFormat("xml"); !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("ParseFormat(xml) error = %v, want ErrInvalidArgument", err)
	}
	if FormatMarkdown.Extension() != ".md" || FormatText.Extension() != ".txt" {
		t.Error("unexpected extensions")
	}
}

func TestHistoryExporters(t *testing.T) {
	entries := historyFixture()

	t.Run("JSON", func(t *testing.T) {
		data, err := ExportHistory(entries, FormatJSON)
		if err != nil {
			t.Fatalf("ExportHistory failed: %v", err)
		}

		var decoded []models.HistoryEntry
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(decoded) != 2 || decoded[0].LastItem.ID != "t0" {
			t.Errorf("decoded = %+v", decoded)
		}
	})

	t.Run("JSON of empty history is an array", func(t *testing.T) {
		data, err := ExportHistory(nil, FormatJSON)
		if err != nil {
			t.Fatalf("ExportHistory failed: %v", err)
		}
		if strings.TrimSpace(string(data)) != "[]" {
			t.Errorf("got %s, want []", data)
		}
	})

	t.Run("CSV", func(t *testing.T) {
		data, err := ExportHistory(entries, FormatCSV)
		if err != nil {
			t.Fatalf("ExportHistory failed: %v", err)
		}

		output := string(data)
		if !strings.HasPrefix(output, "ID,Name,URL,Tracks,Created,Source ID,Source,Visibility,Last Track ID,Last Track\n") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "pl1,New - Mix - 2024-03-01 ✨,https://open.spotify.com/playlist/pl1,12,2024-03-01T09:30:00Z,src,Mix,Public,t0,Song One") {
			t.Errorf("CSV missing first entry, got: %s", output)
		}
		if !strings.Contains(output, `"Imported, with comma"`) {
			t.Errorf("CSV did not quote a name with a comma")
		}
	})

	t.Run("Markdown", func(t *testing.T) {
		data, err := ExportHistory(entries, FormatMarkdown)
		if err != nil {
			t.Fatalf("ExportHistory failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"# Playlist History",
			"**Playlists**: 2",
			"## [New - Mix - 2024-03-01 ✨](https://open.spotify.com/playlist/pl1)",
			"- **Source**: Mix",
			"- **Last Track**: Artist One - Song One",
			"## Imported, with comma",
			"- **Visibility**: Private",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got: %s", want, output)
			}
		}
	})

	t.Run("Text", func(t *testing.T) {
		data, err := ExportHistory(entries, FormatText)
		if err != nil {
			t.Fatalf("ExportHistory failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "1. New - Mix - 2024-03-01 ✨ (12 tracks, 2024-03-01) pl1") {
			t.Errorf("Text missing first entry, got: %s", output)
		}
		if !strings.Contains(output, "   from Mix") {
			t.Errorf("Text missing source")
		}

		empty, _ := HistoryToText(nil)
		if string(empty) != "No playlists created yet.\n" {
			t.Errorf("empty history = %q", empty)
		}
	})
}

func TestTrackExporters(t *testing.T) {
	playlist, tracks := tracksFixture()

	t.Run("CSV", func(t *testing.T) {
		data, err := ExportTracks(playlist, tracks, FormatCSV)
		if err != nil {
			t.Fatalf("ExportTracks failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Index,ID,URI,Title,Artist,Album,Added") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, `1,track2,spotify:track:track2,Song Two,"Artist Two, Guest",,2024-03-01T08:30:00Z`) {
			t.Errorf("CSV missing track2, got: %s", output)
		}
	})

	t.Run("Markdown", func(t *testing.T) {
		t.Run("without cover image", func(t *testing.T) {
			data, err := TracksToMarkdown(playlist, tracks, "")
			if err != nil {
				t.Fatalf("TracksToMarkdown failed: %v", err)
			}

			output := string(data)
			for _, want := range []string{
				"# Test Playlist",
				"**Description**: A test playlist",
				"**Tracks**: 2",
				"**Visibility**: Public",
				"## Tracks",
				"1. Artist One - Song One (Album One) [2024-03-01]",
				"2. Artist Two, Guest - Song Two [2024-03-01]",
			} {
				if !strings.Contains(output, want) {
					t.Errorf("Markdown missing %q, got: %s", want, output)
				}
			}
			if strings.Contains(output, "![Cover]") {
				t.Error("Markdown has a cover without an image")
			}
		})

		t.Run("with cover image", func(t *testing.T) {
			data, err := TracksToMarkdown(playlist, tracks, "test_cover.jpg")
			if err != nil {
				t.Fatalf("TracksToMarkdown failed: %v", err)
			}
			if !strings.Contains(string(data), "![Cover](test_cover.jpg)") {
				t.Errorf("Markdown missing cover image reference")
			}
		})
	})

	t.Run("Text", func(t *testing.T) {
		data, err := ExportTracks(playlist, tracks, FormatText)
		if err != nil {
			t.Fatalf("ExportTracks failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Playlist: Test Playlist") || !strings.Contains(output, "Tracks: 2") {
			t.Errorf("Text missing header, got: %s", output)
		}
		if !strings.Contains(output, "  0. Artist One - Song One  [2024-03-01] track1") {
			t.Errorf("Text missing track1, got: %s", output)
		}
	})

	t.Run("JSON", func(t *testing.T) {
		data, err := ExportTracks(playlist, tracks, FormatJSON)
		if err != nil {
			t.Fatalf("ExportTracks failed: %v", err)
		}

		var decoded struct {
			Playlist models.Playlist `json:"playlist"`
			Tracks   []models.Track  `json:"tracks"`
		}
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.Playlist.ID != "test123" || len(decoded.Tracks) != 2 {
			t.Errorf("decoded = %+v", decoded)
		}
	})
}

func TestDownloadImage(t *testing.T) {
	t.Run("EmptyURL", func(t *testing.T) {
		if _, err := DownloadImage(nil, ""); err == nil {
			t.Error("DownloadImage with empty URL should return error")
		}
	})

	t.Run("Status", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		if _, err := DownloadImage(srv.Client(), srv.URL); err == nil {
			t.Error("DownloadImage should fail on 404")
		}
	})

	t.Run("ReadFailure", func(t *testing.T) {
		resp := &http.Response{StatusCode: http.StatusOK, Body: &th.FCloser{}}
		client := &http.Client{Transport: th.NewMockRoundTripper(resp, nil)}

		if _, err := DownloadImage(client, "http://example.invalid/cover.jpg"); err == nil {
			t.Error("DownloadImage should fail when the body cannot be read")
		}
	})
}

func TestWriters(t *testing.T) {
	playlist, tracks := tracksFixture()

	t.Run("WriteMarkdownExport", func(t *testing.T) {
		t.Run("WithDefaultDirectory", func(t *testing.T) {
			tempDir := t.TempDir()
			originalDir := th.MustGetwd(t)
			th.MustChdir(t, tempDir)
			defer th.MustChdir(t, originalDir)

			result, err := WriteMarkdownExport(nil, playlist, tracks, "", nil)
			if err != nil {
				t.Fatalf("WriteMarkdownExport failed: %v", err)
			}

			if result.Directory != "test123" {
				t.Errorf("Expected directory 'test123', got '%s'", result.Directory)
			}
			th.AssertDirExists(t, result.Directory)

			content := th.MustReadFile(t, filepath.Join(result.Directory, "README.md"))
			if !strings.Contains(content, "# Test Playlist") {
				t.Errorf("Markdown missing title")
			}
			if result.CoverImage != "" {
				t.Errorf("unexpected cover image %s", result.CoverImage)
			}
		})

		t.Run("WithCoverImage", func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("jpeg"))
			}))
			defer srv.Close()

			withImage := playlist
			withImage.ImageURL = srv.URL + "/cover.jpg"
			dir := filepath.Join(t.TempDir(), "export")

			result, err := WriteMarkdownExport(srv.Client(), withImage, tracks, dir, nil)
			if err != nil {
				t.Fatalf("WriteMarkdownExport failed: %v", err)
			}

			if result.CoverImage != filepath.Join(dir, "cover.jpg") || len(result.Files) != 2 {
				t.Errorf("result = %+v", result)
			}
			if th.MustReadFile(t, result.CoverImage) != "jpeg" {
				t.Error("cover image content mismatch")
			}
			if !strings.Contains(th.MustReadFile(t, filepath.Join(dir, "README.md")), "![Cover](cover.jpg)") {
				t.Error("README missing cover reference")
			}
		})

		t.Run("WarnsOnFailedDownload", func(t *testing.T) {
			srv := httptest.NewServer(http.NotFoundHandler())
			defer srv.Close()

			withImage := playlist
			withImage.ImageURL = srv.URL
			var warnings []error

			result, err := WriteMarkdownExport(srv.Client(), withImage, tracks, t.TempDir(), func(err error) {
				warnings = append(warnings, err)
			})
			if err != nil {
				t.Fatalf("WriteMarkdownExport failed: %v", err)
			}
			if len(warnings) != 1 || result.CoverImage != "" {
				t.Errorf("warnings = %v, cover = %q", warnings, result.CoverImage)
			}
		})
	})

	t.Run("WriteFile", func(t *testing.T) {
		t.Run("ToWriter", func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteFile(&buf, "", []byte("data")); err != nil {
				t.Fatalf("WriteFile failed: %v", err)
			}
			if buf.String() != "data" {
				t.Errorf("got %q", buf.String())
			}
		})

		t.Run("ToPath", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "history.csv")
			if err := WriteFile(nil, path, []byte("a,b\n")); err != nil {
				t.Fatalf("WriteFile failed: %v", err)
			}
			th.AssertFileExists(t, path)
		})

		t.Run("WriterFailure", func(t *testing.T) {
			if err := WriteFile(&th.FWriter{}, "", []byte("data")); err == nil {
				t.Error("WriteFile should report writer errors")
			}
		})
	})
}
