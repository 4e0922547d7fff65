package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/BioHazard786/Roomdrop/internal/transfer"
	"github.com/BioHazard786/Roomdrop/internal/utils"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// SummaryRow is the final state of one job.
type SummaryRow struct {
	Job      transfer.Snapshot
	Duration time.Duration
}

// RenderSummary writes the end-of-session table. Average speed covers only
// the time the job was actually moving bytes.
func RenderSummary(w io.Writer, roomID string, rows []SummaryRow) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	t.SetTitle("Room %s", roomID)
	t.AppendHeader(table.Row{"", "Name", "Direction", "Size", "Status", "Duration", "Avg Speed"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})

	var moved int64
	completed := 0
	for _, r := range rows {
		speed := "--"
		if r.Duration > 0 && r.Job.Cursor > 0 {
			speed = utils.FormatSpeed(float64(r.Job.Cursor) / r.Duration.Seconds())
		}
		t.AppendRow(table.Row{
			JobIcon(r.Job),
			utils.TruncateString(r.Job.Name, 40),
			r.Job.Direction,
			fmt.Sprintf("%s / %s", utils.FormatSize(r.Job.Cursor), utils.FormatSize(r.Job.Size)),
			statusColors(r.Job.Status).Sprint(r.Job.Status),
			utils.FormatTimeDuration(r.Duration),
			speed,
		})
		moved += r.Job.Cursor
		if r.Job.Status == transfer.StatusCompleted {
			completed++
		}
	}

	t.AppendFooter(table.Row{"", fmt.Sprintf("%d/%d completed", completed, len(rows)), "", utils.FormatSize(moved), "", "", ""})
	t.Render()
}

func statusColors(s transfer.Status) text.Colors {
	switch s {
	case transfer.StatusCompleted:
		return text.Colors{text.FgGreen, text.Bold}
	case transfer.StatusCancelled:
		return text.Colors{text.FgRed}
	case transfer.StatusInterrupted, transfer.StatusPaused:
		return text.Colors{text.FgYellow}
	default:
		return text.Colors{text.FgHiBlack}
	}
}
