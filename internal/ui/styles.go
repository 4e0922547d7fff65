package ui

import (
	"fmt"

	"github.com/BioHazard786/Roomdrop/internal/peer"
	"github.com/BioHazard786/Roomdrop/internal/transfer"
	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	Primary   = lipgloss.Color("#22d3ee") // cyan accent
	Secondary = lipgloss.Color("#7C3AED") // violet
	Success   = lipgloss.Color("#10B981") // emerald
	Warning   = lipgloss.Color("#F59E0B") // amber
	Error     = lipgloss.Color("#EF4444") // red
	Muted     = lipgloss.Color("#6B7280") // gray

	ProgressStart = "#22d3ee"
	ProgressEnd   = "#0ea5e9"
)

// Text styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary)

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

	BoldStyle = lipgloss.NewStyle().
			Bold(true)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)
)

// Table styles
var (
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(Primary).
				Align(lipgloss.Center)

	tableCellStyle = lipgloss.NewStyle().Padding(0, 1)

	TableRowStyle = tableCellStyle.Foreground(lipgloss.Color("255"))

	TableRowAltStyle = tableCellStyle.Foreground(lipgloss.Color("245"))
)

var SpinnerStyle = lipgloss.NewStyle().Foreground(Primary)

const (
	IconFile      = "📄"
	IconSend      = "📤"
	IconReceive   = "📥"
	IconSuccess   = "✅"
	IconError     = "❌"
	IconWarning   = "⚠️"
	IconInfo      = "ℹ️"
	IconLink      = "🔗"
	IconRoom      = "🚪"
	IconPeer      = "👤"
	IconPause     = "⏸"
	IconWaiting   = "⏳"
	IconClip      = "📋"
	IconWeb       = "🌐"
	IconCancel    = "🚫"
	IconInterrupt = "⚡"
)

// StatusBadge renders a room connection status.
func StatusBadge(s peer.Status) string {
	switch s {
	case peer.StatusConnected:
		return SuccessStyle.Render("● " + s.String())
	case peer.StatusFailed:
		return ErrorStyle.Render("● " + s.String())
	case peer.StatusDisconnected:
		return WarningStyle.Render("● " + s.String())
	default:
		return MutedStyle.Render("○ " + s.String())
	}
}

// JobIcon picks the glyph shown next to a job.
func JobIcon(s transfer.Snapshot) string {
	switch s.Status {
	case transfer.StatusCompleted:
		return IconSuccess
	case transfer.StatusCancelled:
		return IconCancel
	case transfer.StatusInterrupted:
		return IconInterrupt
	case transfer.StatusPaused:
		return IconPause
	case transfer.StatusWaiting:
		return IconWaiting
	}
	if s.Direction == transfer.Receive {
		return IconReceive
	}
	return IconSend
}

func PrintError(msg string) {
	fmt.Printf("%s %s\n", ErrorStyle.Render(IconError), ErrorStyle.Render(msg))
}

func PrintErrorf(format string, args ...any) {
	PrintError(fmt.Sprintf(format, args...))
}

func PrintWarning(msg string) {
	fmt.Printf("%s %s\n", WarningStyle.Render(IconWarning), WarningStyle.Render(msg))
}

func PrintWarningf(format string, args ...any) {
	PrintWarning(fmt.Sprintf(format, args...))
}

func PrintSuccess(msg string) {
	fmt.Printf("%s %s\n", SuccessStyle.Render(IconSuccess), msg)
}

func PrintSuccessf(format string, args ...any) {
	PrintSuccess(fmt.Sprintf(format, args...))
}

func PrintInfo(msg string) {
	fmt.Printf("%s %s\n", IconInfo, msg)
}

func PrintInfof(format string, args ...any) {
	PrintInfo(fmt.Sprintf(format, args...))
}
