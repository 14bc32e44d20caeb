package tasks

import (
	"fmt"

	"github.com/desertthunder/songzip/internal/models"
)

// ProgressUpdate represents a progress event during a job.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	JobID   string // Job the update belongs to
	Phase   Phase  // Pipeline phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data: [models.ItemResult] while fetching, [models.Job] when finished
}

// Pipeline phase enumeration
type Phase int

const (
	Queue Phase = iota
	Resolve
	Fetch
	Archive
	Done
	Failed
)

func (p Phase) String() string {
	switch p {
	case Queue:
		return "queue"
	case Resolve:
		return "resolve"
	case Fetch:
		return "fetch"
	case Archive:
		return "archive"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

const (
	msgQueued      = "Waiting for a free worker..."
	msgStarting    = "Starting download..."
	msgResolving   = "Fetching tracks from Spotify..."
	msgArchiving   = "Creating ZIP file..."
	msgComplete    = "Download complete!"
	msgNoneFetched = "Failed to download any tracks."
	msgNoTracks    = "No tracks found for this link."
	msgCancelled   = "Job cancelled."
)

func downloadingMessage(song models.Song) string {
	return fmt.Sprintf("Downloading: %s", song)
}

func failedMessage(err error) string {
	return fmt.Sprintf("Job failed: %v", err)
}

func resolveUpdate(id string) ProgressUpdate {
	return ProgressUpdate{JobID: id, Phase: Resolve, Step: 0, Total: 1, Message: msgResolving}
}

func resolvedUpdate(id string, songs int) ProgressUpdate {
	return ProgressUpdate{
		JobID:   id,
		Phase:   Resolve,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d tracks", songs),
	}
}

func fetchUpdate(id string, step, total int, song models.Song) ProgressUpdate {
	return ProgressUpdate{
		JobID:   id,
		Phase:   Fetch,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, downloadingMessage(song)),
	}
}

func fetchedUpdate(id string, total int, item models.ItemResult) ProgressUpdate {
	mark := "✓"
	if !item.OK() {
		mark = "✗"
	}
	return ProgressUpdate{
		JobID:   id,
		Phase:   Fetch,
		Step:    item.Index,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s", item.Index, total, mark, item.Song),
		Data:    item,
	}
}

func archiveUpdate(id string) ProgressUpdate {
	return ProgressUpdate{JobID: id, Phase: Archive, Step: 0, Total: 1, Message: msgArchiving}
}

func finishedUpdate(job models.Job) ProgressUpdate {
	phase := Done
	if job.Status == models.StatusError {
		phase = Failed
	}
	return ProgressUpdate{
		JobID:   job.ID,
		Phase:   phase,
		Step:    job.Current,
		Total:   job.Total,
		Message: job.Message,
		Data:    job,
	}
}
