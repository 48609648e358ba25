package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/forecast-flow/internal/model"
	"github.com/Veraticus/forecast-flow/internal/pipeline"
	"github.com/charmbracelet/lipgloss"
)

// RenderRunSummary renders the outcome of a pipeline run.
func RenderRunSummary(s *pipeline.RunSummary) string {
	if s.Empty() {
		return FormatInfo("No actuals loaded yet, nothing to forecast.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Run:        %s\n", SubtleStyle.Render(s.ID.String()))
	fmt.Fprintf(&b, "Reference:  %s\n", s.Reference)
	fmt.Fprintf(&b, "Forecast:   %s\n", monthSpan(s.ForecastMonths))
	fmt.Fprintf(&b, "Duration:   %s\n\n", s.Duration.Round(time.Millisecond))

	for _, trained := range s.Trained {
		line := fmt.Sprintf("%s (%s): %d series", trained.Class, trained.Kind, trained.Series)
		if trained.Failed > 0 {
			line += fmt.Sprintf(", %d not trained", trained.Failed)
		}
		b.WriteString(FormatSuccess(line) + "\n")
	}
	for _, skipped := range s.SkippedClasses {
		b.WriteString(FormatError(fmt.Sprintf("%s skipped at %s: %v", skipped.Class, skipped.Stage, skipped.Err)) + "\n")
	}
	for _, omitted := range s.OmittedSeries {
		b.WriteString(FormatWarning(fmt.Sprintf("%s omitted: %v", omitted.Key, omitted.Err)) + "\n")
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "Forecasts:  %s\n", formatCounts(s.Forecasts))
	fmt.Fprintf(&b, "KPIs:       %s\n", formatCounts(s.KPIs))
	fmt.Fprintf(&b, "Alerts:     %d sent", s.Notifications)
	for _, failure := range s.DeliveryFailures {
		b.WriteString("\n" + FormatWarning(failure.Error()))
	}

	return RenderBox("Forecast Run Complete", b.String())
}

func formatCounts(c pipeline.ChangeCounts) string {
	return fmt.Sprintf("%d created, %d updated, %d unchanged", c.Created, c.Updated, c.Unchanged)
}

func monthSpan(months []model.Month) string {
	switch len(months) {
	case 0:
		return "-"
	case 1:
		return months[0].String()
	default:
		return months[0].String() + " to " + months[len(months)-1].String()
	}
}

// RenderNotifications renders an employee's notifications as a table.
func RenderNotifications(notifications []model.Notification) string {
	if len(notifications) == 0 {
		return FormatInfo("No notifications.")
	}

	header := lipgloss.JoinHorizontal(lipgloss.Top,
		TableHeaderStyle.Render(TableCellStyle.Render(fmt.Sprintf("%-6s", "ID"))),
		TableHeaderStyle.Render(TableCellStyle.Render(fmt.Sprintf("%-17s", "Created"))),
		TableHeaderStyle.Render(TableCellStyle.Render(fmt.Sprintf("%-6s", "Read"))),
		TableHeaderStyle.Render(TableCellStyle.Render("Subject")),
	)

	rows := []string{header}
	for _, n := range notifications {
		read := " "
		style := BoldStyle
		if n.IsRead {
			read = SuccessIcon
			style = SubtleStyle
		}
		rows = append(rows, style.Render(fmt.Sprintf("%-8d%-19s%-8s%s",
			n.ID, n.CreatedAt.Format("2006-01-02 15:04"), read, n.Subject)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// RenderNotification renders one notification in full.
func RenderNotification(n model.Notification) string {
	meta := SubtleStyle.Render(fmt.Sprintf("#%d  %s  %s", n.ID, n.Type, n.CreatedAt.Format(time.RFC1123)))
	return RenderBox(BellIcon+" "+n.Subject, meta+"\n\n"+n.Body)
}
