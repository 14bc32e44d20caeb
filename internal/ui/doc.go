// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks through one download:
//  1. [ResolveView] : Resolve the Spotify link while a spinner runs
//  2. [SongListView] : Pick which songs to download (all selected by default)
//  3. [ConfirmView] : Confirm the selection
//  4. [DownloadView] : Monitor real-time progress updates
//  5. [ResultView] : Show the archive path and every failed song with its reason
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through the job controller's progress channel, so rendering never blocks the download.
//
// Keyboard navigation uses vim-style bindings (j/k, space, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
