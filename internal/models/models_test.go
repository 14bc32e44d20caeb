package models

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

var errNotFound = errors.New("not found")

func TestSong(t *testing.T) {
	tests := []struct {
		name  string
		song  Song
		str   string
		query string
		valid bool
	}{
		{name: "Full", song: Song{Name: "Song", Artist: "Artist"}, str: "Song - Artist", query: "Song Artist", valid: true},
		{name: "NoArtist", song: Song{Name: "Song"}, str: "Song", query: "Song", valid: true},
		{name: "Blank", song: Song{Name: "  ", Artist: "Artist"}, str: "   - Artist", query: "Artist", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.song.String(); got != tt.str {
				t.Errorf("String() = %q, want %q", got, tt.str)
			}
			if got := tt.song.Query(); got != tt.query {
				t.Errorf("Query() = %q, want %q", got, tt.query)
			}
			if got := tt.song.Valid(); got != tt.valid {
				t.Errorf("Valid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	t.Run("Predicates", func(t *testing.T) {
		if !StatusDownloading.IsActive() || StatusIdle.IsActive() {
			t.Error("only downloading should be active")
		}
		if !StatusDone.IsFinished() || !StatusError.IsFinished() || StatusDownloading.IsFinished() {
			t.Error("only done and error should be finished")
		}
	})

	t.Run("CanTransition", func(t *testing.T) {
		tests := []struct {
			from, to Status
			want     bool
		}{
			{StatusIdle, StatusDownloading, true},
			{StatusIdle, StatusError, true},
			{StatusIdle, StatusDone, false},
			{StatusDownloading, StatusDone, true},
			{StatusDownloading, StatusError, true},
			{StatusDownloading, StatusIdle, false},
			{StatusDone, StatusDownloading, false},
			{StatusError, StatusDone, false},
		}

		for _, tt := range tests {
			t.Run(fmt.Sprintf("%s_to_%s", tt.from, tt.to), func(t *testing.T) {
				if got := tt.from.CanTransition(tt.to); got != tt.want {
					t.Errorf("CanTransition() = %v, want %v", got, tt.want)
				}
			})
		}
	})
}

func TestNewItemResult(t *testing.T) {
	song := Song{Name: "Song", Artist: "Artist"}

	tests := []struct {
		name   string
		err    error
		reason Reason
		file   string
	}{
		{name: "OK", err: nil, reason: ReasonOK, file: "Song.mp3"},
		{name: "NotFound", err: fmt.Errorf("search: %w", errNotFound), reason: ReasonNotFound},
		{name: "Cancelled", err: fmt.Errorf("fetch: %w", context.Canceled), reason: ReasonCancelled},
		{name: "Failed", err: errors.New("exit status 1"), reason: ReasonFetchFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewItemResult(1, song, "Song.mp3", tt.err, errNotFound)
			if res.Reason != tt.reason {
				t.Errorf("Reason = %s, want %s", res.Reason, tt.reason)
			}
			if res.File != tt.file {
				t.Errorf("File = %q, want %q", res.File, tt.file)
			}
			if res.OK() != (tt.err == nil) {
				t.Errorf("OK() = %v", res.OK())
			}
			if tt.err != nil && res.Error != tt.err.Error() {
				t.Errorf("Error = %q, want %q", res.Error, tt.err.Error())
			}
		})
	}
}

func TestReportFailures(t *testing.T) {
	report := Report{Items: []ItemResult{
		{Index: 1, Reason: ReasonOK},
		{Index: 2, Reason: ReasonNotFound},
		{Index: 3, Reason: ReasonCancelled},
	}}

	failures := report.Failures()
	if len(failures) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(failures))
	}
	if failures[0].Index != 2 || failures[1].Index != 3 {
		t.Errorf("unexpected failures order: %+v", failures)
	}
}

func TestJobProgress(t *testing.T) {
	job := Job{ID: "x", Status: StatusDownloading, Current: 1, Total: 3, Message: "Downloading: A - B", Succeeded: 1}
	got := job.Progress()
	want := Progress{Status: StatusDownloading, Current: 1, Total: 3, Message: "Downloading: A - B"}
	if got != want {
		t.Errorf("Progress() = %+v, want %+v", got, want)
	}
}

func TestJobRecord(t *testing.T) {
	started := time.Now().Add(-time.Minute)
	completed := time.Now()
	job := Job{
		ID:          "job-1",
		Status:      StatusDone,
		Current:     2,
		Total:       2,
		Message:     "Download complete!",
		Source:      "selection",
		Succeeded:   2,
		CreatedAt:   started,
		StartedAt:   &started,
		CompletedAt: &completed,
		Archive:     "/tmp/job-1.zip",
	}
	items := []ItemResult{{Index: 1, Reason: ReasonOK}, {Index: 2, Reason: ReasonOK}}

	t.Run("RoundTripsSnapshot", func(t *testing.T) {
		record := NewJobRecord(job, items)
		if err := record.Validate(); err != nil {
			t.Fatalf("unexpected validation error: %v", err)
		}

		snap := record.Snapshot()
		if snap.ID != job.ID || snap.Status != job.Status || snap.Current != 2 || snap.Archive != job.Archive {
			t.Errorf("snapshot mismatch: %+v", snap)
		}

		report := record.Report()
		if report.JobID != "job-1" || len(report.Items) != 2 || report.Succeeded != 2 {
			t.Errorf("report mismatch: %+v", report)
		}
	})

	t.Run("DefaultsCreatedAt", func(t *testing.T) {
		record := NewJobRecord(Job{ID: "job-2", Status: StatusIdle}, nil)
		if record.CreatedAt().IsZero() {
			t.Error("expected created_at to default to now")
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tests := []struct {
			name string
			job  Job
		}{
			{name: "MissingID", job: Job{Status: StatusDone}},
			{name: "BadStatus", job: Job{ID: "x", Status: "paused"}},
			{name: "Negative", job: Job{ID: "x", Status: StatusDone, Total: -1}},
			{name: "Overflow", job: Job{ID: "x", Status: StatusDone, Total: 1, Succeeded: 1, Failed: 1}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if err := NewJobRecord(tt.job, nil).Validate(); err == nil {
					t.Error("expected validation error")
				}
			})
		}
	})
}
