// Package ui renders the participant client's terminal surface.
package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	Primary   = lipgloss.Color("#22d3ee")
	Secondary = lipgloss.Color("#7C3AED")
	Success   = lipgloss.Color("#10B981")
	Warning   = lipgloss.Color("#F59E0B")
	Error     = lipgloss.Color("#EF4444")
	Muted     = lipgloss.Color("#6B7280")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary)

	SelfStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	PeerStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning)

	MutedStyle = lipgloss.NewStyle().
			Foreground(Muted)

	BannerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(0, 2)
)

const (
	IconSuccess = "✅"
	IconError   = "❌"
	IconWarning = "⚠️"
	IconInfo    = "ℹ️"
	IconRoom    = "🚪"
	IconPeer    = "👤"
	IconMuted   = "🔇"
	IconMic     = "🎙️"
	IconVideo   = "📹"
	IconHost    = "⭐"
)

func PrintError(w io.Writer, msg string) {
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render(IconError), ErrorStyle.Render(msg))
}

func PrintSuccess(w io.Writer, msg string) {
	fmt.Fprintf(w, "%s %s\n", SuccessStyle.Render(IconSuccess), msg)
}

func PrintInfo(w io.Writer, msg string) {
	fmt.Fprintf(w, "%s %s\n", IconInfo, msg)
}

// Banner is printed once the room is entered.
func Banner(room, name string) string {
	return BannerStyle.Render(fmt.Sprintf("%s %s\n%s %s\n%s",
		IconRoom, TitleStyle.Render(room),
		IconPeer, name,
		MutedStyle.Render("/mute /video /who /name <new> /resync /reconnect <id> /leave"),
	))
}
