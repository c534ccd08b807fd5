package ui

import (
	"strings"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RosterView renders the /who table. links holds the media link state for
// every remote participant that has one.
func RosterView(participants []domain.Participant, self domain.UserID, links map[domain.UserID]core.LinkState) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Title.Align = text.AlignCenter
	tw.SetTitle("Participants (%d)", len(participants))
	tw.AppendHeader(table.Row{"", "Name", "ID", "Mic", "Video", "Link"})

	for _, p := range participants {
		name := p.DisplayName
		if p.ID == self {
			name += " (you)"
		}
		flags := []string{p.Avatar}
		if p.IsHost {
			flags = append(flags, IconHost)
		}
		mic := IconMic
		if p.IsMuted {
			mic = IconMuted
		}
		video := "-"
		if p.HasVideo {
			video = IconVideo
		}
		tw.AppendRow(table.Row{strings.Join(flags, " "), name, shortID(p.ID), mic, video, linkLabel(p.ID, self, links)})
	}
	return tw.Render()
}

func linkLabel(id, self domain.UserID, links map[domain.UserID]core.LinkState) string {
	if id == self {
		return "-"
	}
	state, ok := links[id]
	if !ok {
		return "none"
	}
	return state.String()
}

func shortID(id domain.UserID) string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}
