package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/aether/internal/duration"
	"github.com/desertthunder/aether/internal/models"
)

var (
	_ list.Item = candidateItem{}
	_ list.Item = skipItem{}
)

// candidateItem wraps [models.Candidate] to implement [list.Item].
type candidateItem struct {
	rank      int
	candidate models.Candidate
}

func (i candidateItem) FilterValue() string { return i.candidate.Title }
func (i candidateItem) Title() string       { return fmt.Sprintf("%d. %s", i.rank, i.candidate.Title) }
func (i candidateItem) Description() string {
	desc := duration.Format(i.candidate.Duration)
	if i.candidate.Views > 0 {
		desc = fmt.Sprintf("%s • %d views", desc, i.candidate.Views)
	}
	return fmt.Sprintf("%s • score %.2f • %s", desc, i.candidate.Score, i.candidate.URL)
}

// skipItem is the last entry of the resolve list.
type skipItem struct{}

func (skipItem) FilterValue() string { return "skip" }
func (skipItem) Title() string       { return "Skip this track" }
func (skipItem) Description() string { return "Mark as NO_MATCH and move on" }

func candidateItems(candidates []models.Candidate) []list.Item {
	items := make([]list.Item, 0, len(candidates)+1)
	for i, c := range candidates {
		items = append(items, candidateItem{rank: i + 1, candidate: c})
	}
	return append(items, skipItem{})
}
