package formatter

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/songzip/internal/models"
	"github.com/desertthunder/songzip/internal/shared"
	th "github.com/desertthunder/songzip/internal/testing"
)

func sampleReport() JobReport {
	started := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	completed := started.Add(2*time.Minute + 5*time.Second)
	return JobReport{
		Job: models.Job{
			ID:          "job-123",
			Status:      models.StatusDone,
			Current:     2,
			Total:       2,
			Message:     "Download complete!",
			Source:      "https://open.spotify.com/playlist/abc",
			Succeeded:   1,
			Failed:      1,
			StartedAt:   &started,
			CompletedAt: &completed,
		},
		Report: models.Report{
			JobID:     "job-123",
			Status:    models.StatusDone,
			Succeeded: 1,
			Failed:    1,
			Items: []models.ItemResult{
				{Index: 1, Song: models.Song{Name: "Song One", Artist: "Artist One"}, File: "Song One.mp3", Reason: models.ReasonOK},
				{Index: 2, Song: models.Song{Name: "Pipe|Song", Artist: "Artist Two"}, Reason: models.ReasonNotFound, Error: "track not found"},
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{input: "", want: FormatText},
		{input: "TXT", want: FormatText},
		{input: "md", want: FormatMarkdown},
		{input: "markdown", want: FormatMarkdown},
		{input: " csv ", want: FormatCSV},
		{input: "json", want: FormatJSON},
		{input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidArgument) {
					t.Errorf("expected ErrInvalidArgument, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestExporters(t *testing.T) {
	t.Run("ReportToCSV", func(t *testing.T) {
		data, err := ReportToCSV(sampleReport().Report)
		if err != nil {
			t.Fatalf("ReportToCSV failed: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
		}
		if lines[0] != "Index,Name,Artist,Reason,File,Error" {
			t.Errorf("CSV missing headers, got: %s", lines[0])
		}
		if lines[1] != "1,Song One,Artist One,ok,Song One.mp3," {
			t.Errorf("unexpected first row: %s", lines[1])
		}
		if !strings.Contains(lines[2], "not_found") || !strings.Contains(lines[2], "track not found") {
			t.Errorf("unexpected second row: %s", lines[2])
		}
	})

	t.Run("ReportToMarkdown", func(t *testing.T) {
		data, err := ReportToMarkdown(sampleReport())
		if err != nil {
			t.Fatalf("ReportToMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"# Job job-123",
			"**Source**: https://open.spotify.com/playlist/abc",
			"**Tracks**: 1 downloaded, 1 failed, 2 total",
			"**Duration**: 2m5s",
			"| 1 | Song One - Artist One | ok | Song One.mp3 |",
			`Pipe\|Song`,
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("ReportToMarkdownWithoutItems", func(t *testing.T) {
		r := JobReport{Job: models.Job{ID: "job-1", Status: models.StatusError, Error: "Job failed: boom"}}
		data, err := ReportToMarkdown(r)
		if err != nil {
			t.Fatalf("ReportToMarkdown failed: %v", err)
		}
		output := string(data)
		if strings.Contains(output, "## Tracks") {
			t.Error("expected no track table for empty report")
		}
		if !strings.Contains(output, "**Error**: Job failed: boom") {
			t.Errorf("expected error line, got:\n%s", output)
		}
	})

	t.Run("ReportToText", func(t *testing.T) {
		data, err := ReportToText(sampleReport())
		if err != nil {
			t.Fatalf("ReportToText failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"Job: job-123",
			"Status: done",
			"Tracks: 1/2 downloaded",
			"1. Song One - Artist One [ok] Song One.mp3",
			"2. Pipe|Song - Artist Two [not_found] track not found",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("text missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("RenderJSON", func(t *testing.T) {
		data, err := Render(FormatJSON, sampleReport())
		if err != nil {
			t.Fatalf("Render failed: %v", err)
		}

		var decoded JobReport
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if decoded.Job.ID != "job-123" || len(decoded.Report.Items) != 2 {
			t.Errorf("unexpected decoded report: %+v", decoded)
		}
	})

	t.Run("RenderUnknown", func(t *testing.T) {
		if _, err := Render(Format("xml"), sampleReport()); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}

func TestSongs(t *testing.T) {
	songs := []models.Song{{Name: "A", Artist: "X"}, {Name: "B, the song", Artist: "Y"}}

	t.Run("SongsToText", func(t *testing.T) {
		got := string(SongsToText(songs))
		want := "1. A - X\n2. B, the song - Y\n"
		if got != want {
			t.Errorf("SongsToText() = %q, want %q", got, want)
		}
	})

	t.Run("SongsToCSV", func(t *testing.T) {
		data, err := SongsToCSV(songs)
		if err != nil {
			t.Fatalf("SongsToCSV failed: %v", err)
		}
		if !strings.Contains(string(data), `"B, the song",Y`) {
			t.Errorf("expected quoted field, got: %s", data)
		}
	})
}

func TestDuration(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{name: "SubSecond", d: 300 * time.Millisecond, want: "0s"},
		{name: "Seconds", d: 3*time.Second + 400*time.Millisecond, want: "3s"},
		{name: "Minutes", d: 2*time.Minute + 3*time.Second, want: "2m3s"},
		{name: "Hours", d: time.Hour + 2*time.Minute + 3*time.Second, want: "1h2m3s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.d); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}

	if got := Duration(models.Job{}); got != "" {
		t.Errorf("expected empty duration for unstarted job, got %q", got)
	}
}

func TestWriteReport(t *testing.T) {
	t.Run("ExplicitPath", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "report.md")

		got, err := WriteReport(FormatMarkdown, sampleReport(), path)
		if err != nil {
			t.Fatalf("WriteReport failed: %v", err)
		}
		if got != path {
			t.Errorf("expected path %s, got %s", path, got)
		}
		if !strings.Contains(th.MustReadFile(t, path), "# Job job-123") {
			t.Error("report file has unexpected content")
		}
	})

	t.Run("DefaultPath", func(t *testing.T) {
		t.Chdir(t.TempDir())

		got, err := WriteReport(FormatCSV, sampleReport(), "")
		if err != nil {
			t.Fatalf("WriteReport failed: %v", err)
		}
		if got != "job-123_report.csv" {
			t.Errorf("unexpected default path %s", got)
		}
		th.AssertFileExists(t, got)
	})

	t.Run("UnwritablePath", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "report.txt")
		if _, err := WriteReport(FormatText, sampleReport(), path); err == nil {
			t.Error("expected error writing into a missing directory")
		}
	})
}
