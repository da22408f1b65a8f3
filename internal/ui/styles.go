package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	Primary = lipgloss.Color("#22d3ee") // Cyan
	Success = lipgloss.Color("#10B981") // Emerald
	Warning = lipgloss.Color("#F59E0B") // Amber
	Error   = lipgloss.Color("#EF4444") // Red
	Muted   = lipgloss.Color("#6B7280") // Gray
)

// Text styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary).
			MarginBottom(1)

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

	RoomStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary)
)

func PrintTitle(text string) {
	fmt.Println(TitleStyle.Render(text))
}

func PrintSuccess(text string) {
	fmt.Println(SuccessStyle.Render("✓ " + text))
}

func PrintError(text string) {
	fmt.Println(ErrorStyle.Render("✗ " + text))
}

func PrintWarning(text string) {
	fmt.Println(WarningStyle.Render("! " + text))
}

func PrintMuted(text string) {
	fmt.Println(MutedStyle.Render(text))
}

// PrintRoomID renders the room identifier to share with the other
// participant.
func PrintRoomID(roomID string) {
	fmt.Println(RoomStyle.Render(roomID))
}
