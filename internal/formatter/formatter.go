// package formatter renders job reports and song lists to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/songzip/internal/models"
	"github.com/desertthunder/songzip/internal/shared"
)

// Format names an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
)

// ParseFormat maps user input to a [Format]. An empty string means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Extension returns the file extension used when writing f to disk.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatCSV:
		return ".csv"
	case FormatJSON:
		return ".json"
	default:
		return ".txt"
	}
}

// JobReport pairs a job snapshot with its item results for rendering.
type JobReport struct {
	Job    models.Job    `json:"job"`
	Report models.Report `json:"report"`
}

// Render renders r in format f.
func Render(f Format, r JobReport) ([]byte, error) {
	switch f {
	case FormatText:
		return ReportToText(r)
	case FormatMarkdown:
		return ReportToMarkdown(r)
	case FormatCSV:
		return ReportToCSV(r.Report)
	case FormatJSON:
		return shared.MarshalJSON(r, true)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, f)
	}
}

// ReportToCSV converts a report to CSV format with columns: Index, Name, Artist, Reason, File, Error
func ReportToCSV(report models.Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Index", "Name", "Artist", "Reason", "File", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, item := range report.Items {
		record := []string{
			strconv.Itoa(item.Index),
			item.Song.Name,
			item.Song.Artist,
			string(item.Reason),
			item.File,
			item.Error,
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

// ReportToMarkdown converts a report to Markdown with a summary and a results table
func ReportToMarkdown(r JobReport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# Job %s\n\n", r.Job.ID))
	if r.Job.Source != "" {
		buf.WriteString(fmt.Sprintf("**Source**: %s\n", r.Job.Source))
	}
	buf.WriteString(fmt.Sprintf("**Status**: %s\n", r.Job.Status))
	buf.WriteString(fmt.Sprintf("**Tracks**: %d downloaded, %d failed, %d total\n", r.Report.Succeeded, r.Report.Failed, r.Job.Total))
	if d := Duration(r.Job); d != "" {
		buf.WriteString(fmt.Sprintf("**Duration**: %s\n", d))
	}
	if r.Job.Error != "" {
		buf.WriteString(fmt.Sprintf("**Error**: %s\n", r.Job.Error))
	}

	if len(r.Report.Items) == 0 {
		return buf.Bytes(), nil
	}

	buf.WriteString("\n## Tracks\n\n")
	buf.WriteString("| # | Song | Result | File |\n")
	buf.WriteString("|---|------|--------|------|\n")
	for _, item := range r.Report.Items {
		result := string(item.Reason)
		if item.Error != "" {
			result = fmt.Sprintf("%s: %s", item.Reason, item.Error)
		}
		buf.WriteString(fmt.Sprintf("| %d | %s | %s | %s |\n",
			item.Index, escapeCell(item.Song.String()), escapeCell(result), escapeCell(item.File)))
	}

	return buf.Bytes(), nil
}

// ReportToText converts a report to plain text format
func ReportToText(r JobReport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Job: %s\n", r.Job.ID))
	if r.Job.Source != "" {
		buf.WriteString(fmt.Sprintf("Source: %s\n", r.Job.Source))
	}
	buf.WriteString(fmt.Sprintf("Status: %s\n", r.Job.Status))
	if r.Job.Message != "" {
		buf.WriteString(fmt.Sprintf("Message: %s\n", r.Job.Message))
	}
	buf.WriteString(fmt.Sprintf("Tracks: %d/%d downloaded\n", r.Report.Succeeded, r.Job.Total))
	if d := Duration(r.Job); d != "" {
		buf.WriteString(fmt.Sprintf("Duration: %s\n", d))
	}

	if len(r.Report.Items) > 0 {
		buf.WriteString("\n")
	}
	for _, item := range r.Report.Items {
		if item.OK() {
			buf.WriteString(fmt.Sprintf("%d. %s [ok] %s\n", item.Index, item.Song, item.File))
			continue
		}
		buf.WriteString(fmt.Sprintf("%d. %s [%s] %s\n", item.Index, item.Song, item.Reason, item.Error))
	}

	return buf.Bytes(), nil
}

// SongsToText renders a numbered list of songs, one per line
func SongsToText(songs []models.Song) []byte {
	var buf bytes.Buffer
	for i, song := range songs {
		buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, song))
	}
	return buf.Bytes()
}

// SongsToCSV converts songs to CSV with columns: Name, Artist
func SongsToCSV(songs []models.Song) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Name", "Artist"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, song := range songs {
		if err := writer.Write([]string{song.Name, song.Artist}); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// Duration returns how long the job ran, or "" when it never started.
// Running jobs are measured up to now.
func Duration(job models.Job) string {
	if job.StartedAt == nil {
		return ""
	}
	end := time.Now()
	if job.CompletedAt != nil {
		end = *job.CompletedAt
	}
	return FormatDuration(end.Sub(*job.StartedAt))
}

// FormatDuration formats a duration as "1h2m3s", "2m3s" or "3s", dropping sub-second precision
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}
	return d.Truncate(time.Second).String()
}

// WriteReport renders r in format f and writes it to path.
//
// Defaults to {job.ID}_report{ext} as the filename.
func WriteReport(f Format, r JobReport, path string) (string, error) {
	if path == "" {
		path = r.Job.ID + "_report" + f.Extension()
	}

	data, err := Render(f, r)
	if err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	return path, nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
