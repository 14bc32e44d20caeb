package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/songzip/internal/models"
	"github.com/desertthunder/songzip/internal/services"
	"github.com/desertthunder/songzip/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ResolveView ViewState = iota
	SongListView
	ConfirmView
	DownloadView
	ResultView
)

// Jobs is the part of [tasks.Manager] the TUI drives.
type Jobs interface {
	Start(ctx context.Context, in tasks.Input) (models.Job, error)
	Wait(ctx context.Context, id string) (models.Job, error)
	Report(id string) (models.Report, error)
	Cancel(id string) error
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	view     ViewState
	link     string
	resolver services.Resolver
	jobs     Jobs
	updates  <-chan tasks.ProgressUpdate
	width    int
	height   int
	songList list.Model
	spinner  spinner.Model
	job      models.Job
	finished chan struct{}
	progress tasks.ProgressUpdate
	result   *jobFinished
	err      error
	help     help.Model
	keys     keyMap
}

// NewModel creates a new TUI model that downloads songs from link.
//
// updates must be the progress channel the job controller was created with.
func NewModel(ctx context.Context, link string, resolver services.Resolver, jobs Jobs, updates <-chan tasks.ProgressUpdate) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.title.UnsetMarginBottom()

	return &Model{
		ctx:      ctx,
		view:     ResolveView,
		link:     link,
		resolver: resolver,
		jobs:     jobs,
		updates:  updates,
		spinner:  sp,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init resolves the link while the spinner runs.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.resolve())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.view == SongListView {
			m.songList.SetSize(msg.Width-4, msg.Height-6)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.view {
		case ResolveView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case SongListView:
			return m.handleSongListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case DownloadView:
			return m.handleDownloadKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateList(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgSongsResolved:
		data := msg.data.(songsResolved)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		if len(data.songs) == 0 {
			m.err = fmt.Errorf("no songs found for %s", m.link)
			return m, nil
		}
		m.songList = list.New(songItems(data.songs), list.NewDefaultDelegate(), 0, 0)
		m.songList.Title = fmt.Sprintf("%d songs", len(data.songs))
		m.songList.SetSize(m.width-4, m.height-6)
		m.view = SongListView
		return m, nil

	case MsgJobStarted:
		data := msg.data.(jobStarted)
		if data.err != nil {
			m.err = data.err
			m.view = ResultView
			return m, nil
		}
		m.job = data.job
		m.finished = make(chan struct{})
		return m, tea.Batch(m.spinner.Tick, m.waitForProgress(), m.waitForJob())

	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		if update.JobID == m.job.ID {
			m.progress = update
		}
		if m.view != DownloadView {
			return m, nil
		}
		return m, m.waitForProgress()

	case MsgJobFinished:
		data := msg.data.(jobFinished)
		m.result = &data
		m.err = data.err
		m.view = ResultView
		if m.finished != nil {
			close(m.finished)
			m.finished = nil
		}
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case ResolveView:
		return fmt.Sprintf("%s Resolving %s...\n", m.spinner.View(), m.link)
	case SongListView:
		return m.renderSongList()
	case ConfirmView:
		return m.renderConfirm()
	case DownloadView:
		return m.renderDownload()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleSongListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.songList.FilterState() == list.Filtering {
		return m.updateList(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggle):
		m.toggle(m.songList.Index())
		return m, nil
	case key.Matches(msg, m.keys.all):
		m.toggleAll()
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if len(selectedSongs(m.songList.Items())) > 0 {
			m.view = ConfirmView
		}
		return m, nil
	}

	return m.updateList(msg)
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.view = DownloadView
		m.progress = tasks.ProgressUpdate{}
		return m, m.startJob(selectedSongs(m.songList.Items()))
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.quit):
		m.view = SongListView
		return m, nil
	}
	return m, nil
}

func (m *Model) handleDownloadKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.cancel):
		if m.job.ID != "" {
			_ = m.jobs.Cancel(m.job.ID)
		}
		return m, nil
	case msg.String() == "ctrl+c":
		if m.job.ID != "" {
			_ = m.jobs.Cancel(m.job.ID)
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		if m.songList.Items() == nil {
			return m, nil
		}
		m.view = SongListView
		m.job = models.Job{}
		m.result = nil
		m.err = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.view != SongListView {
		return m, nil
	}
	var cmd tea.Cmd
	m.songList, cmd = m.songList.Update(msg)
	return m, cmd
}

func (m *Model) toggle(index int) {
	items := m.songList.Items()
	if index < 0 || index >= len(items) {
		return
	}
	item := items[index].(songItem)
	item.selected = !item.selected
	m.songList.SetItem(index, item)
}

// toggleAll selects every song unless all are already selected, in which case it clears the selection.
func (m *Model) toggleAll() {
	items := m.songList.Items()
	target := len(selectedSongs(items)) != len(items)
	for i, it := range items {
		item := it.(songItem)
		item.selected = target
		m.songList.SetItem(i, item)
	}
}

func (m *Model) resolve() tea.Cmd {
	return func() tea.Msg {
		if m.resolver == nil {
			return songsResolvedMsg(nil, fmt.Errorf("no resolver configured: set Spotify credentials"))
		}
		songs, err := m.resolver.Resolve(m.ctx, m.link)
		return songsResolvedMsg(songs, err)
	}
}

func (m *Model) startJob(songs []models.Song) tea.Cmd {
	return func() tea.Msg {
		job, err := m.jobs.Start(m.ctx, tasks.Input{Songs: songs})
		return jobStartedMsg(job, err)
	}
}

// waitForProgress reads one update; it gives up once the job finished so no goroutine outlives it.
func (m *Model) waitForProgress() tea.Cmd {
	updates, finished := m.updates, m.finished
	if updates == nil || finished == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			return progressUpdateMsg(update)
		case <-finished:
			return nil
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) waitForJob() tea.Cmd {
	id := m.job.ID
	return func() tea.Msg {
		job, err := m.jobs.Wait(m.ctx, id)
		if err != nil {
			return jobFinishedMsg(job, models.Report{}, err)
		}
		report, err := m.jobs.Report(id)
		return jobFinishedMsg(job, report, err)
	}
}

func (m *Model) renderSongList() string {
	helpKeys := []key.Binding{m.keys.toggle, m.keys.all, m.keys.enter, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	selected := len(selectedSongs(m.songList.Items()))
	status := styles.help.Render(fmt.Sprintf("%d of %d selected", selected, len(m.songList.Items())))
	return fmt.Sprintf("%s\n%s\n\n%s", m.songList.View(), status, helpView)
}

func (m *Model) renderConfirm() string {
	songs := selectedSongs(m.songList.Items())
	title := styles.title.Render(fmt.Sprintf("Download %d songs?", len(songs)))
	info := fmt.Sprintf("\nSource: %s\nSongs: %d of %d\n", m.link, len(songs), len(m.songList.Items()))

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderDownload() string {
	title := styles.title.Render("Downloading")

	var phase string
	switch m.progress.Phase {
	case tasks.Queue:
		phase = "Waiting for a free worker..."
	case tasks.Resolve:
		phase = "Resolving songs..."
	case tasks.Fetch:
		phase = fmt.Sprintf("Fetching songs (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.Archive:
		phase = "Creating ZIP file..."
	default:
		phase = "Processing..."
	}

	width := 30
	if m.width > 20 {
		width = min(50, m.width-20)
	}
	bar := styles.Bar(m.progress.Step, m.progress.Total, width)

	helpKeys := []key.Binding{m.keys.cancel}
	return fmt.Sprintf("%s\n%s %s\n%s\n%s\n\n%s",
		title, m.spinner.View(), phase, bar, m.progress.Message, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderResult() string {
	helpKeys := []key.Binding{m.keys.restart, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	if m.result == nil {
		msg := "No result available"
		if m.err != nil {
			msg = fmt.Sprintf("Download failed: %v", m.err)
		}
		return styles.err.Render(msg) + "\n\n" + helpView
	}

	job := m.result.job
	var title string
	if job.Status == models.StatusDone {
		title = styles.ok.Render("✓ " + job.Message)
	} else {
		title = styles.err.Render("✗ " + job.Message)
	}

	info := fmt.Sprintf("\nDownloaded: %d/%d", job.Succeeded, job.Total)
	if job.Status == models.StatusDone && job.Archive != "" {
		info += fmt.Sprintf("\nArchive: %s", job.Archive)
	}
	if job.Error != "" && job.Status != models.StatusDone {
		info += fmt.Sprintf("\nError: %s", job.Error)
	}

	var failed strings.Builder
	if failures := m.result.report.Failures(); len(failures) > 0 {
		failed.WriteString("\n\n")
		failed.WriteString(styles.warn.Render(fmt.Sprintf("Failed to download %d songs:", len(failures))))
		for _, item := range failures {
			failed.WriteString(fmt.Sprintf("\n  • %s (%s)", item.Song, item.Reason))
		}
	}

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, failed.String(), helpView)
}
