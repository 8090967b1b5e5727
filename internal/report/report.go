// Package report renders rating results for the terminal.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"golang.org/x/term"

	"github.com/wonny/safra/backend/internal/contracts"
	"github.com/wonny/safra/backend/internal/rating"
)

// Format selects the output shape
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// Options controls rendering
type Options struct {
	Format    Format
	UseColors bool
	Width     int // 0 detects the terminal width
}

// fixedColumnsWidth is what the non-metric columns of the result table take with borders
const fixedColumnsWidth = 78

const minMetricWidth = 12

// metricColumnWidth returns the space left for metric codes
func metricColumnWidth(width int) int {
	if width <= 0 {
		detected, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detected <= 0 {
			detected = 120
		}
		width = detected
	}
	return max(width-fixedColumnsWidth, minMetricWidth)
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

// gradeColor maps a grade's color band to a terminal color
func gradeColor(band string, useColors bool) func(...any) string {
	if !useColors {
		return fmt.Sprint
	}
	switch {
	case strings.HasPrefix(band, "green"):
		return color.New(color.FgGreen, color.Bold).SprintFunc()
	case strings.HasPrefix(band, "lime"):
		return color.New(color.FgHiGreen).SprintFunc()
	case strings.HasPrefix(band, "yellow"):
		return color.New(color.FgYellow).SprintFunc()
	case strings.HasPrefix(band, "orange"):
		return color.New(color.FgHiYellow, color.Bold).SprintFunc()
	default:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	}
}

// WriteResult prints a rating result
func WriteResult(w io.Writer, result *contracts.RatingResult, opts Options) error {
	if opts.Format == FormatJSON {
		return writeJSON(w, result)
	}

	table := tablewriter.NewWriter(w)
	defer func() { _ = table.Close() }()

	table.Header([]string{"Metric", "Type", "Value", "Level", "Score", "Weight", "Contribution"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	warn := fmt.Sprint
	if opts.UseColors {
		warn = color.New(color.FgYellow).SprintFunc()
	}

	nameWidth := metricColumnWidth(opts.Width)
	data := make([][]string, 0, len(result.Contributions))
	for _, c := range result.Contributions {
		name := truncate(c.MetricCode, nameWidth)
		if c.Degraded {
			name = warn(name + " *")
		}
		data = append(data, []string{
			name,
			string(c.Type),
			fmt.Sprintf("%.2f", c.Value),
			c.Level,
			fmt.Sprintf("%.2f", c.Score),
			fmt.Sprintf("%.2f%%", c.Weight),
			fmt.Sprintf("%.2f", c.Contribution),
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	grade := gradeColor(result.ColorBand, opts.UseColors)
	if _, err := fmt.Fprintf(w, "Final score: %.2f  Grade: %s (%s)\n",
		result.FinalScore, grade(result.LetterGrade), result.Description); err != nil {
		return err
	}
	if result.ModelID != "" {
		if _, err := fmt.Fprintf(w, "Model: %s  Organization: %s  Calculated at: %s\n",
			result.ModelID, result.OrganizationID, result.CalculatedAt.Format("2006-01-02 15:04:05")); err != nil {
			return err
		}
	}
	for _, wn := range result.Warnings {
		if _, err := fmt.Fprintln(w, warn(fmt.Sprintf("! %s %s: %s", wn.Kind, wn.MetricCode, wn.Message))); err != nil {
			return err
		}
	}
	return nil
}

// WriteValidation prints a validation outcome
func WriteValidation(w io.Writer, outcome rating.ValidationOutcome, opts Options) error {
	if opts.Format == FormatJSON {
		return writeJSON(w, outcome)
	}

	ok, fail := fmt.Sprint, fmt.Sprint
	if opts.UseColors {
		ok = color.New(color.FgGreen).SprintFunc()
		fail = color.New(color.FgRed).SprintFunc()
	}

	if outcome.OK {
		_, err := fmt.Fprintf(w, "%s total weight %.2f%%\n", ok("VALID"), outcome.TotalWeight)
		return err
	}

	if _, err := fmt.Fprintf(w, "%s %s: %s\n", fail("INVALID"), outcome.Reason, outcome.Message); err != nil {
		return err
	}
	for _, issue := range outcome.Issues {
		if _, err := fmt.Fprintf(w, "  - %s: %s\n", issue.Reason, issue.Message); err != nil {
			return err
		}
	}
	return nil
}

// WriteClassification prints a grade, marking it on the full scale
func WriteClassification(w io.Writer, score float64, c rating.Classification, opts Options) error {
	if opts.Format == FormatJSON {
		return writeJSON(w, c)
	}

	table := tablewriter.NewWriter(w)
	defer func() { _ = table.Close() }()

	table.Header([]string{"", "Grade", "Min score", "Description"})

	data := make([][]string, 0, 7)
	for _, g := range rating.GradeScale() {
		marker := ""
		letter := g.Letter
		if g.Letter == c.Letter {
			marker = "▶"
			letter = gradeColor(g.ColorBand, opts.UseColors)(g.Letter)
		}
		data = append(data, []string{marker, letter, fmt.Sprintf("%.0f", g.MinScore), g.Description})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Score %.2f → %s\n", score, c.Letter)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("error writing JSON output: %w", err)
	}
	return nil
}
