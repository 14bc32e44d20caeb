package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/songzip/internal/models"
	"github.com/desertthunder/songzip/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgSongsResolved MsgKind = iota
	MsgJobStarted
	MsgProgressUpdate
	MsgJobFinished
)

type songsResolved struct {
	songs []models.Song
	err   error
}

type jobFinished struct {
	job    models.Job
	report models.Report
	err    error
}

type jobStarted struct {
	job models.Job
	err error
}

// songsResolvedMsg is the constructor for [MsgSongsResolved]
func songsResolvedMsg(songs []models.Song, err error) Msg {
	return Msg{kind: MsgSongsResolved, data: songsResolved{songs, err}}
}

// jobStartedMsg is the constructor for [MsgJobStarted]
func jobStartedMsg(job models.Job, err error) Msg {
	return Msg{kind: MsgJobStarted, data: jobStarted{job, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// jobFinishedMsg is the constructor for [MsgJobFinished]
func jobFinishedMsg(job models.Job, report models.Report, err error) Msg {
	return Msg{kind: MsgJobFinished, data: jobFinished{job, report, err}}
}
