package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/aether/internal/harvest"
	"github.com/desertthunder/aether/internal/tasks"
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
	MsgLaunched MsgKind = iota
	MsgPipelineEvent
	MsgHarvestDone
	MsgMissionStarted
	MsgDecided
)

type launchResult struct {
	pipeline  *tasks.Pipeline
	harvester harvest.Harvester
	err       error
}

// launchedMsg is the constructor for [MsgLaunched]
func launchedMsg(p *tasks.Pipeline, h harvest.Harvester, err error) Msg {
	return Msg{kind: MsgLaunched, data: launchResult{p, h, err}}
}

// eventMsg is the constructor for [MsgPipelineEvent]
func eventMsg(ev tasks.Event) Msg {
	return Msg{kind: MsgPipelineEvent, data: ev}
}

// harvestDoneMsg is the constructor for [MsgHarvestDone]
func harvestDoneMsg(err error) Msg {
	return Msg{kind: MsgHarvestDone, data: err}
}

// missionStartedMsg is the constructor for [MsgMissionStarted]
func missionStartedMsg(m *tasks.Mission, err error) Msg {
	return Msg{
		kind: MsgMissionStarted,
		data: struct {
			mission *tasks.Mission
			err     error
		}{m, err},
	}
}

// decidedMsg is the constructor for [MsgDecided]
func decidedMsg(index int, err error) Msg {
	return Msg{
		kind: MsgDecided,
		data: struct {
			index int
			err   error
		}{index, err},
	}
}
