// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for archiving a playlist:
//  1. [LaunchView] : Enter the playlist source, library name, thread count and engine
//  2. [ArchivistView] : Watch tracks stream in, toggle the selection and start the mission
//  3. [ResolveView] : Pick one of up to three candidates for an ambiguous track, or skip it
//  4. [StatsView] : Display the mission report
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Pipeline events are read one at a time by a waitForEvent command, so the UI never blocks the workers.
//
// Keyboard navigation uses vim-style bindings (j/k, space, enter, esc, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
