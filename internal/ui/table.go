package ui

import (
	"fmt"
	"strconv"

	"github.com/BioHazard786/Roomdrop/internal/utils"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// FileTableItem is one row of the offered-files table.
type FileTableItem struct {
	Name string
	Size int64
	Type string
}

// FileTableView renders the files about to be offered.
func FileTableView(items []FileTableItem) string {
	if len(items) == 0 {
		return MutedStyle.Render("No files")
	}

	rows := make([][]string, 0, len(items))
	for i, item := range items {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			utils.TruncateString(item.Name, 50),
			utils.FormatSize(item.Size),
			utils.TruncateString(item.Type, 20),
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("#", "Name", "Size", "Type").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		}).
		Render()
}

func RenderFileTable(items []FileTableItem) {
	fmt.Println(FileTableView(items))
}

// RoomInfoView is the box shown after creating a room.
func RoomInfoView(code, link, deepLink string) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Success).
		Padding(1, 2)

	content := fmt.Sprintf("%s Room Created!\n\n%s Code:       %s\n%s Link:       %s\n%s Deep link:  %s",
		IconSuccess,
		IconClip, BoldStyle.Foreground(Primary).Render(code),
		IconWeb, MutedStyle.Render(link),
		IconLink, MutedStyle.Render(deepLink),
	)
	return box.Render(content)
}

func RenderRoomInfo(code, link, deepLink string) {
	fmt.Println(RoomInfoView(code, link, deepLink))
}
