package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/pterm/pterm"

	"github.com/ZilatAIOBC/NOMLT-sub002/internal/format"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/growth"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/services/analytics"
)

const barWidth = 40

var (
	brightGreen  = color.New(color.FgGreen, color.Bold).SprintFunc()
	brightRed    = color.New(color.FgRed, color.Bold).SprintFunc()
	brightYellow = color.New(color.FgYellow, color.Bold).SprintFunc()
	brightCyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
)

// growthText colours a growth rate: up is green, down is red, flat is yellow.
func growthText(rate *growth.Rate) string {
	if rate == nil {
		return "-"
	}
	text := rate.Display
	if rate.NewActivity {
		text += " (new)"
	}
	switch {
	case rate.Percent > 0:
		return brightGreen(text)
	case rate.Percent < 0:
		return brightRed(text)
	default:
		return brightYellow(text)
	}
}

func renderTable(w io.Writer, title string, data pterm.TableData) {
	table, err := pterm.DefaultTable.
		WithHasHeader().
		WithBoxed().
		WithHeaderStyle(pterm.NewStyle(pterm.FgLightCyan)).
		WithData(data).
		Srender()
	if err != nil {
		fmt.Fprintf(w, "%s: render failed: %v\n", title, err)
		return
	}
	fmt.Fprintln(w, brightCyan(title))
	fmt.Fprintln(w, table)
}

func renderViewError(w io.Writer, msg string) {
	if msg == "" {
		return
	}
	fmt.Fprintln(w, brightRed("unavailable: "+msg))
}

func bar(value, peak int64) string {
	if peak <= 0 || value <= 0 {
		return ""
	}
	n := int(value * barWidth / peak)
	if n == 0 {
		n = 1
	}
	return strings.Repeat("█", n)
}

func periodHeader(name, period string) string {
	if period == "" {
		return name
	}
	return name + " (" + period + ")"
}

func renderSummary(w io.Writer, view analytics.SummaryView) {
	s := view.Summary
	data := pterm.TableData{{"Metric", periodHeader("Current", view.CurrentPeriod), periodHeader("Previous", view.PreviousPeriod), "Growth"}}
	for _, row := range []struct {
		name   string
		metric analytics.MetricSummary
	}{
		{"Revenue", s.Revenue},
		{"Active users", s.Users},
		{"Credits used", s.Credits},
	} {
		change := growthText(row.metric.Growth)
		if row.metric.Error != "" {
			change = brightRed(row.metric.Error)
		}
		data = append(data, []string{row.name, row.metric.CurrentDisplay, row.metric.PreviousDisplay, change})
	}
	cost := s.EstimatedCost
	if s.CostError != "" {
		cost = brightRed(s.CostError)
	}
	data = append(data, []string{"Estimated cost", cost, "", ""})
	renderTable(w, "Summary", data)
	renderViewError(w, view.Error)
}

func renderFeatureUsage(w io.Writer, view analytics.FeatureUsageView) {
	data := pterm.TableData{{"#", "Feature", "Credits", "Share"}}
	for _, f := range view.Features {
		data = append(data, []string{strconv.Itoa(f.Rank), f.FeatureName, f.CreditsDisplay, f.PercentDisplay})
	}
	data = append(data, []string{"", "Total", view.TotalDisplay, ""})
	renderTable(w, "Feature usage", data)
	renderViewError(w, view.Error)
}

func renderTopUsers(w io.Writer, view analytics.TopUsersView) {
	data := pterm.TableData{{"#", "User", "Credits today", "Credits total", "Est. cost"}}
	for _, u := range view.Users {
		name := u.UserID
		if u.Email != "" {
			name = u.Email
		}
		data = append(data, []string{
			strconv.Itoa(u.Rank),
			name,
			u.CreditsDisplay,
			format.Credits(u.CreditsTotal),
			u.EstimatedCost,
		})
	}
	renderTable(w, "Top users by "+string(view.SortKey), data)
	renderViewError(w, view.Error)
}

func renderFeatureCosts(w io.Writer, view analytics.FeatureCostsView) {
	data := pterm.TableData{{"#", "Feature", "Credits", "Unit cost", "Cost"}}
	for _, f := range view.Features {
		data = append(data, []string{strconv.Itoa(f.Rank), f.FeatureName, f.CreditsDisplay, f.UnitCost, f.Cost})
	}
	data = append(data, []string{"", "Total", "", "", view.TotalCost})
	renderTable(w, "Cost per feature", data)
	renderViewError(w, view.Error)
}

func renderMonthly(w io.Writer, view analytics.MonthlyTrendView) {
	var peak int64
	for _, m := range view.Months {
		if m.CreditsUsed > peak {
			peak = m.CreditsUsed
		}
	}
	data := pterm.TableData{{"Month", "Revenue", "Users", "Credits", "", "Credits MoM"}}
	for _, m := range view.Months {
		data = append(data, []string{
			m.Month,
			m.Revenue,
			strconv.FormatInt(m.UserCount, 10),
			m.CreditsDisplay,
			pterm.FgBlue.Sprint(bar(m.CreditsUsed, peak)),
			growthText(m.CreditsGrowth),
		})
	}
	renderTable(w, "Monthly trend", data)
	renderViewError(w, view.Error)
}

func renderDaily(w io.Writer, view analytics.DailyTrendView) {
	var peak int64
	if view.Peak != nil {
		peak = view.Peak.Credits
	}
	data := pterm.TableData{{"Date", "Credits", ""}}
	for _, d := range view.Days {
		data = append(data, []string{d.Date, format.Credits(d.Credits), pterm.FgBlue.Sprint(bar(d.Credits, peak))})
	}
	data = append(data, []string{"Total", view.TotalDisplay, ""})
	renderTable(w, fmt.Sprintf("Daily credits %s (%d days)", view.Month, view.WindowDays), data)
	renderViewError(w, view.Error)
}

func renderEstimate(w io.Writer, view analytics.EstimateView) {
	bound := "unbounded"
	if !view.Tier.IsUnbounded() {
		bound = "up to " + format.Credits(view.Tier.UpperBoundCredits)
	}
	data := pterm.TableData{
		{"Credits", "Tier", "Unit cost", "Cost"},
		{format.Credits(view.Credits), bound, view.UnitCost, brightGreen(view.Cost)},
	}
	renderTable(w, "Estimate", data)
}

func renderTiers(w io.Writer, rows []tierRow) {
	data := pterm.TableData{{"#", "Up to", "Price", "Per", "Unit cost"}}
	for i, row := range rows {
		bound := "unbounded"
		if !row.IsUnbounded() {
			bound = format.Credits(row.UpperBoundCredits)
		}
		data = append(data, []string{
			strconv.Itoa(i + 1),
			bound,
			format.Currency(row.PriceCents),
			format.Credits(row.ReferenceCredits),
			row.UnitCost,
		})
	}
	renderTable(w, "Pricing tiers", data)
}
