package tasks

import (
	"archive/zip"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/songzip/internal/models"
	"github.com/desertthunder/songzip/internal/shared"
	tu "github.com/desertthunder/songzip/internal/testing"
)

const playlistLink = "https://open.spotify.com/playlist/p1"

var testSongs = []models.Song{
	{Name: "One", Artist: "A"},
	{Name: "Two", Artist: "B"},
	{Name: "Three", Artist: "C"},
}

type recorder struct {
	mu    sync.Mutex
	jobs  []models.Job
	items [][]models.ItemResult
}

func (r *recorder) Record(ctx context.Context, job models.Job, items []models.ItemResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	r.items = append(r.items, items)
	return nil
}

func newTestManager(t *testing.T, resolver *tu.MockResolver, fetcher *tu.MockFetcher, opts ManagerOpts) *Manager {
	t.Helper()
	root := t.TempDir()
	if opts.WorkDir == "" {
		opts.WorkDir = filepath.Join(root, "work")
	}
	if opts.ArchiveDir == "" {
		opts.ArchiveDir = filepath.Join(root, "archives")
	}
	opts.Logger = tu.NewTestLogger()

	var engine *Engine
	if resolver == nil {
		engine = NewEngine(nil, fetcher, 0, opts.Logger)
	} else {
		engine = NewEngine(resolver, fetcher, 0, opts.Logger)
	}

	m := NewManager(engine, opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		m.Shutdown(ctx)
	})
	return m
}

func startAndWait(t *testing.T, m *Manager, in Input) models.Job {
	t.Helper()
	job, err := m.Start(context.Background(), in)
	if err != nil {
		t.Fatalf("failed to start job: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	final, err := m.Wait(ctx, job.ID)
	if err != nil {
		t.Fatalf("job %s did not finish: %v (last snapshot %+v)", job.ID, err, final)
	}
	return final
}

func zipEntries(t *testing.T, path string) []string {
	t.Helper()
	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	defer r.Close()

	names := make([]string, len(r.File))
	for i, f := range r.File {
		names[i] = f.Name
	}
	return names
}

func TestManagerStart(t *testing.T) {
	t.Run("Explicit Songs All Succeed", func(t *testing.T) {
		fetcher := &tu.MockFetcher{}
		m := newTestManager(t, nil, fetcher, ManagerOpts{})

		job := startAndWait(t, m, Input{Songs: testSongs})

		if job.Status != models.StatusDone {
			t.Fatalf("expected done, got %s (%s)", job.Status, job.Message)
		}
		if job.Current != 3 || job.Total != 3 {
			t.Errorf("expected 3/3, got %d/%d", job.Current, job.Total)
		}
		if job.Message != "Download complete!" {
			t.Errorf("unexpected message %q", job.Message)
		}
		if job.Succeeded != 3 || job.Failed != 0 {
			t.Errorf("unexpected counters %d/%d", job.Succeeded, job.Failed)
		}
		if job.StartedAt == nil || job.CompletedAt == nil {
			t.Error("expected start and completion times")
		}

		path, err := m.Artifact(job.ID)
		if err != nil {
			t.Fatalf("expected artifact, got %v", err)
		}
		if entries := zipEntries(t, path); len(entries) != 3 {
			t.Errorf("expected 3 archive entries, got %v", entries)
		}
		tu.AssertNotExists(t, filepath.Join(m.opts.WorkDir, job.ID))
	})

	t.Run("Link Is Resolved", func(t *testing.T) {
		resolver := tu.NewMockResolver(playlistLink, testSongs[:2]...)
		m := newTestManager(t, resolver, &tu.MockFetcher{}, ManagerOpts{})

		job := startAndWait(t, m, Input{Link: playlistLink})

		if job.Status != models.StatusDone || job.Total != 2 {
			t.Errorf("expected done with 2 songs, got %s %d", job.Status, job.Total)
		}
		if job.Source != playlistLink {
			t.Errorf("expected source to be the link, got %q", job.Source)
		}
		if len(resolver.Calls) != 1 {
			t.Errorf("expected one resolve call, got %d", len(resolver.Calls))
		}
	})

	t.Run("Songs Skip Resolution", func(t *testing.T) {
		resolver := tu.NewMockResolver(playlistLink, testSongs...)
		m := newTestManager(t, resolver, &tu.MockFetcher{}, ManagerOpts{})

		startAndWait(t, m, Input{Songs: testSongs[:1]})
		if len(resolver.Calls) != 0 {
			t.Errorf("resolver should not be called for explicit songs")
		}
	})

	t.Run("Validation", func(t *testing.T) {
		m := newTestManager(t, nil, &tu.MockFetcher{}, ManagerOpts{})

		tc := []struct {
			name string
			in   Input
			want error
		}{
			{name: "invalid link", in: Input{Link: "not-a-link"}, want: shared.ErrInvalidLink},
			{name: "empty selection", in: Input{Songs: []models.Song{}}, want: shared.ErrEmptySelection},
			{name: "blank songs", in: Input{Songs: []models.Song{{Name: " ", Artist: "x"}}}, want: shared.ErrEmptySelection},
			{name: "nothing", in: Input{}, want: shared.ErrEmptySelection},
			{name: "both", in: Input{Link: playlistLink, Songs: testSongs}, want: shared.ErrInvalidInput},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				_, err := m.Start(context.Background(), tt.in)
				if !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}

		if jobs := m.List(); len(jobs) != 0 {
			t.Errorf("rejected input should not create jobs, got %d", len(jobs))
		}
		if latest := m.Latest(); latest.Status != models.StatusIdle {
			t.Errorf("expected idle latest status, got %s", latest.Status)
		}
	})

	t.Run("Jobs Are Isolated", func(t *testing.T) {
		m := newTestManager(t, nil, &tu.MockFetcher{}, ManagerOpts{MaxJobs: 2})

		first := startAndWait(t, m, Input{Songs: testSongs[:1]})
		second := startAndWait(t, m, Input{Songs: testSongs[1:]})

		if first.ID == second.ID {
			t.Fatal("expected distinct job ids")
		}
		if first.Archive == second.Archive {
			t.Error("expected distinct archives")
		}

		again, err := m.Status(first.ID)
		if err != nil {
			t.Fatalf("expected first job to be retained: %v", err)
		}
		if again.Total != 1 || again.Status != models.StatusDone {
			t.Errorf("first job was overwritten: %+v", again)
		}
		if m.Latest().ID != second.ID {
			t.Error("latest should be the second job")
		}
		if len(zipEntries(t, first.Archive)) != 1 || len(zipEntries(t, second.Archive)) != 2 {
			t.Error("archives should hold only their own job's files")
		}
		if jobs := m.List(); len(jobs) != 2 || jobs[0].ID != first.ID {
			t.Errorf("expected both jobs oldest first, got %v", jobs)
		}
	})
}

func TestEngineFailures(t *testing.T) {
	t.Run("No Fetch Succeeds", func(t *testing.T) {
		fetcher := &tu.MockFetcher{Errs: map[string]error{
			"One": shared.ErrTrackNotFound,
			"Two": shared.ErrFetchFailed,
		}}
		m := newTestManager(t, nil, fetcher, ManagerOpts{})

		job := startAndWait(t, m, Input{Songs: testSongs[:2]})

		if job.Status != models.StatusError {
			t.Fatalf("expected error, got %s", job.Status)
		}
		if job.Message != "Failed to download any tracks." {
			t.Errorf("unexpected message %q", job.Message)
		}
		if _, err := m.Artifact(job.ID); !errors.Is(err, shared.ErrNotReady) {
			t.Errorf("expected ErrNotReady, got %v", err)
		}
		tu.AssertNotExists(t, job.Archive)
		tu.AssertNotExists(t, filepath.Join(m.opts.WorkDir, job.ID))
	})

	t.Run("Partial Failure Reports Reasons", func(t *testing.T) {
		fetcher := &tu.MockFetcher{Errs: map[string]error{
			"Two":   shared.ErrTrackNotFound,
			"Three": errors.New("yt-dlp exited 1"),
		}}
		m := newTestManager(t, nil, fetcher, ManagerOpts{})

		job := startAndWait(t, m, Input{Songs: testSongs})
		if job.Status != models.StatusDone {
			t.Fatalf("expected done, got %s", job.Status)
		}

		report, err := m.Report(job.ID)
		if err != nil {
			t.Fatalf("failed to get report: %v", err)
		}
		if len(report.Items) != 3 {
			t.Fatalf("expected one item per song, got %d", len(report.Items))
		}

		want := []models.Reason{models.ReasonOK, models.ReasonNotFound, models.ReasonFetchFailed}
		for i, item := range report.Items {
			if item.Index != i+1 || item.Song != testSongs[i] {
				t.Errorf("item %d out of order: %+v", i, item)
			}
			if item.Reason != want[i] {
				t.Errorf("item %d: expected %s, got %s", i, want[i], item.Reason)
			}
		}
		if report.Succeeded != 1 || report.Failed != 2 || len(report.Failures()) != 2 {
			t.Errorf("unexpected report counters %+v", report)
		}
		if entries := zipEntries(t, job.Archive); len(entries) != 1 {
			t.Errorf("expected one entry, got %v", entries)
		}
	})

	t.Run("Resolver Error Ends In Error", func(t *testing.T) {
		resolver := &tu.MockResolver{Err: shared.ErrAPIRequest}
		m := newTestManager(t, resolver, &tu.MockFetcher{}, ManagerOpts{})

		job := startAndWait(t, m, Input{Link: playlistLink})

		if job.Status != models.StatusError {
			t.Fatalf("expected error, got %s", job.Status)
		}
		if !strings.HasPrefix(job.Message, "Job failed: ") {
			t.Errorf("unexpected message %q", job.Message)
		}
		if job.Error == "" {
			t.Error("expected error detail")
		}
	})

	t.Run("Resolver Finds Nothing", func(t *testing.T) {
		resolver := tu.NewMockResolver(playlistLink)
		m := newTestManager(t, resolver, &tu.MockFetcher{}, ManagerOpts{})

		job := startAndWait(t, m, Input{Link: playlistLink})
		if job.Status != models.StatusError || job.Message != "No tracks found for this link." {
			t.Errorf("unexpected final state %s %q", job.Status, job.Message)
		}
	})

	t.Run("Missing Resolver", func(t *testing.T) {
		m := newTestManager(t, nil, &tu.MockFetcher{}, ManagerOpts{})

		job := startAndWait(t, m, Input{Link: playlistLink})
		if job.Status != models.StatusError || !strings.Contains(job.Error, shared.ErrServiceUnavailable.Error()) {
			t.Errorf("unexpected final state %s %q", job.Status, job.Error)
		}
	})

	t.Run("Panic Ends In Error", func(t *testing.T) {
		m := newTestManager(t, nil, &tu.MockFetcher{Panic: true}, ManagerOpts{})

		job := startAndWait(t, m, Input{Songs: testSongs[:1]})
		if job.Status != models.StatusError || !strings.Contains(job.Message, "panic") {
			t.Errorf("unexpected final state %s %q", job.Status, job.Message)
		}
	})
}

func TestManagerCancel(t *testing.T) {
	t.Run("In Flight", func(t *testing.T) {
		fetcher := &tu.MockFetcher{Gate: make(chan struct{}), Started: make(chan models.Song, 1)}
		m := newTestManager(t, nil, fetcher, ManagerOpts{})

		job, err := m.Start(context.Background(), Input{Songs: testSongs})
		if err != nil {
			t.Fatalf("failed to start: %v", err)
		}

		select {
		case <-fetcher.Started:
		case <-time.After(5 * time.Second):
			t.Fatal("fetch never started")
		}

		running, _ := m.Status(job.ID)
		if running.Status != models.StatusDownloading || running.Current != 1 {
			t.Errorf("expected downloading 1/3, got %s %d/%d", running.Status, running.Current, running.Total)
		}
		if running.Message != "Downloading: One - A" {
			t.Errorf("unexpected message %q", running.Message)
		}
		if _, err := m.Artifact(job.ID); !errors.Is(err, shared.ErrNotReady) {
			t.Errorf("expected ErrNotReady while running, got %v", err)
		}

		if err := m.Cancel(job.ID); err != nil {
			t.Fatalf("cancel failed: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		final, err := m.Wait(ctx, job.ID)
		if err != nil {
			t.Fatalf("job did not finish after cancel: %v", err)
		}
		if final.Status != models.StatusError || final.Message != "Job cancelled." {
			t.Errorf("unexpected final state %s %q", final.Status, final.Message)
		}
		tu.AssertNotExists(t, filepath.Join(m.opts.WorkDir, job.ID))

		report, _ := m.Report(job.ID)
		if len(report.Items) != 3 {
			t.Fatalf("expected an item for every song, got %d", len(report.Items))
		}
		for _, item := range report.Items {
			if item.Reason != models.ReasonCancelled {
				t.Errorf("expected cancelled item, got %+v", item)
			}
		}

		if err := m.Cancel(job.ID); !errors.Is(err, shared.ErrJobFinished) {
			t.Errorf("expected ErrJobFinished on second cancel, got %v", err)
		}
	})

	t.Run("Queued", func(t *testing.T) {
		fetcher := &tu.MockFetcher{Gate: make(chan struct{}), Started: make(chan models.Song, 1)}
		m := newTestManager(t, nil, fetcher, ManagerOpts{MaxJobs: 1})

		first, _ := m.Start(context.Background(), Input{Songs: testSongs[:1]})
		<-fetcher.Started
		queued, err := m.Start(context.Background(), Input{Songs: testSongs[1:2]})
		if err != nil {
			t.Fatalf("failed to queue: %v", err)
		}
		if queued.Status != models.StatusIdle {
			t.Errorf("expected queued job to be idle, got %s", queued.Status)
		}

		if err := m.Cancel(queued.ID); err != nil {
			t.Fatalf("cancel failed: %v", err)
		}
		snap, _ := m.Status(queued.ID)
		if snap.Status != models.StatusError || snap.Message != "Job cancelled." {
			t.Errorf("queued job should end immediately, got %s %q", snap.Status, snap.Message)
		}

		close(fetcher.Gate)
		final := waitFor(t, m, first.ID)
		if final.Status != models.StatusDone {
			t.Errorf("first job should still finish, got %s", final.Status)
		}
		for _, s := range fetcher.Fetched() {
			if s == testSongs[1] {
				t.Error("cancelled queued job should never fetch")
			}
		}
	})

	t.Run("Unknown Job", func(t *testing.T) {
		m := newTestManager(t, nil, &tu.MockFetcher{}, ManagerOpts{})
		if err := m.Cancel("missing"); !errors.Is(err, shared.ErrJobNotFound) {
			t.Errorf("expected ErrJobNotFound, got %v", err)
		}
		if _, err := m.Status("missing"); !errors.Is(err, shared.ErrJobNotFound) {
			t.Errorf("expected ErrJobNotFound, got %v", err)
		}
	})
}

func TestManagerQueueOrder(t *testing.T) {
	fetcher := &tu.MockFetcher{Gate: make(chan struct{}), Started: make(chan models.Song, 1)}
	m := newTestManager(t, nil, fetcher, ManagerOpts{MaxJobs: 1})

	var ids []string
	for i, song := range testSongs {
		job, err := m.Start(context.Background(), Input{Songs: []models.Song{song}})
		if err != nil {
			t.Fatalf("failed to start job %d: %v", i, err)
		}
		ids = append(ids, job.ID)
		if i == 0 {
			<-fetcher.Started
		}
	}

	close(fetcher.Gate)
	for _, id := range ids {
		if job := waitFor(t, m, id); job.Status != models.StatusDone {
			t.Errorf("job %s ended %s", id, job.Status)
		}
	}

	fetched := fetcher.Fetched()
	if len(fetched) != len(testSongs) {
		t.Fatalf("expected %d fetches, got %d", len(testSongs), len(fetched))
	}
	for i, song := range testSongs {
		if fetched[i] != song {
			t.Errorf("position %d: expected %s, got %s", i, song, fetched[i])
		}
	}
}

func TestJobStateCancelQueued(t *testing.T) {
	now := time.Now()
	newState := func() *jobState {
		return newJobState("j1", Input{Songs: testSongs[:1]}, t.TempDir(), "", func() {}, now)
	}

	t.Run("Idle Job Ends", func(t *testing.T) {
		st := newState()
		if !st.cancelQueued(msgCancelled, shared.ErrCancelled.Error(), now) {
			t.Fatal("expected idle job to cancel")
		}
		if st.begin(now) {
			t.Error("a cancelled job must not begin")
		}
		snap := st.snapshot()
		if snap.Status != models.StatusError || snap.CompletedAt == nil {
			t.Errorf("expected error with completion time, got %s", snap.Status)
		}
	})

	t.Run("Begun Job Is Left Running", func(t *testing.T) {
		st := newState()
		if !st.begin(now) {
			t.Fatal("expected job to begin")
		}
		if st.cancelQueued(msgCancelled, shared.ErrCancelled.Error(), now) {
			t.Error("a running job must not be ended as queued")
		}
		if got := st.status(); got != models.StatusDownloading {
			t.Errorf("expected downloading, got %s", got)
		}
	})
}

func waitFor(t *testing.T, m *Manager, id string) models.Job {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	job, err := m.Wait(ctx, id)
	if err != nil {
		t.Fatalf("job %s did not finish: %v", id, err)
	}
	return job
}

func TestManagerShutdown(t *testing.T) {
	fetcher := &tu.MockFetcher{Gate: make(chan struct{}), Started: make(chan models.Song, 1)}
	m := newTestManager(t, nil, fetcher, ManagerOpts{})

	job, _ := m.Start(context.Background(), Input{Songs: testSongs})
	<-fetcher.Started

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	final, _ := m.Status(job.ID)
	if final.Status != models.StatusError {
		t.Errorf("running job should end in error on shutdown, got %s", final.Status)
	}

	if _, err := m.Start(context.Background(), Input{Songs: testSongs}); !errors.Is(err, shared.ErrShutdown) {
		t.Errorf("expected ErrShutdown after shutdown, got %v", err)
	}
}

func TestManagerPrune(t *testing.T) {
	fetcher := &tu.MockFetcher{}
	m := newTestManager(t, nil, fetcher, ManagerOpts{TTL: time.Hour})

	finished := startAndWait(t, m, Input{Songs: testSongs[:1]})

	gated := &tu.MockFetcher{Gate: make(chan struct{}), Started: make(chan models.Song, 1)}
	m.engine.fetcher = gated
	active, _ := m.Start(context.Background(), Input{Songs: testSongs[1:2]})
	<-gated.Started

	if n := m.Prune(time.Now()); n != 0 {
		t.Errorf("nothing is past TTL yet, pruned %d", n)
	}

	if n := m.Prune(time.Now().Add(2 * time.Hour)); n != 1 {
		t.Errorf("expected one job pruned, got %d", n)
	}
	if _, err := m.Status(finished.ID); !errors.Is(err, shared.ErrJobNotFound) {
		t.Errorf("pruned job should be gone, got %v", err)
	}
	tu.AssertNotExists(t, finished.Archive)

	if _, err := m.Status(active.ID); err != nil {
		t.Errorf("active job must never be pruned: %v", err)
	}
	close(gated.Gate)
	waitFor(t, m, active.ID)
}

func TestProgressUpdates(t *testing.T) {
	progress := make(chan ProgressUpdate, 64)
	fetcher := &tu.MockFetcher{Errs: map[string]error{"Two": shared.ErrTrackNotFound}}
	hist := &recorder{}
	m := newTestManager(t, nil, fetcher, ManagerOpts{Progress: progress, History: hist})

	job := startAndWait(t, m, Input{Songs: testSongs})

	var updates []ProgressUpdate
	for len(progress) > 0 {
		updates = append(updates, <-progress)
	}
	if len(updates) == 0 {
		t.Fatal("expected progress updates")
	}

	last := 0
	for _, u := range updates {
		if u.JobID != job.ID {
			t.Errorf("update for wrong job %s", u.JobID)
		}
		if u.Phase == Fetch {
			if u.Step < last {
				t.Errorf("fetch step went backwards: %d after %d", u.Step, last)
			}
			if u.Step > u.Total {
				t.Errorf("step %d exceeds total %d", u.Step, u.Total)
			}
			last = u.Step
		}
	}
	if final := updates[len(updates)-1]; final.Phase != Done {
		t.Errorf("expected final update to be done, got %s", final.Phase)
	}

	hist.mu.Lock()
	defer hist.mu.Unlock()
	if len(hist.jobs) != 1 || hist.jobs[0].ID != job.ID || len(hist.items[0]) != 3 {
		t.Errorf("expected history for the job, got %d records", len(hist.jobs))
	}
}

func TestSendProgressNeverBlocks(t *testing.T) {
	ch := make(chan ProgressUpdate)
	done := make(chan struct{})
	go func() {
		sendProgress(ch, ProgressUpdate{Message: "dropped"})
		sendProgress(nil, ProgressUpdate{Message: "ignored"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sendProgress blocked")
	}
}

func TestPhaseString(t *testing.T) {
	tc := map[Phase]string{Queue: "queue", Resolve: "resolve", Fetch: "fetch", Archive: "archive", Done: "done", Failed: "failed", Phase(99): ""}
	for phase, want := range tc {
		if got := phase.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", phase, got, want)
		}
	}
}
