package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const (
	prefix              = "   "
	runSummaryHeader    = "❯❯ Run Summary"
	successLabel        = "Succeeded"
	upToDateLabel       = "Up-to-date"
	failureLabel        = "Failed"
	blockedLabel        = "Blocked"
	separatorLineLength = 28
	labelColumnWidth    = 16
)

// Summary formats data from a report for output as a summary.
type Summary struct {
	firstRunStart *time.Time
	lastRunEnd    *time.Time
	Failed        []string
	Blocked       []string
	TotalTasks    int
	Succeeded     int
	UpToDate      int
	shouldColor   bool
}

// Summarize returns a summary of the report.
func (r *Report) Summarize() *Summary {
	runs := r.Runs()

	summary := &Summary{
		TotalTasks:  len(runs),
		shouldColor: r.shouldColor,
	}

	for _, run := range runs {
		summary.Update(run)
	}

	return summary
}

// Update folds a single run into the summary.
func (s *Summary) Update(run *Run) {
	run.mu.RLock()
	defer run.mu.RUnlock()

	switch run.Result {
	case ResultSucceeded:
		s.Succeeded++
	case ResultUpToDate:
		s.UpToDate++
	case ResultFailed:
		s.Failed = append(s.Failed, run.Name)
	case ResultBlocked:
		s.Blocked = append(s.Blocked, run.Name)
	}

	if s.firstRunStart == nil || run.Started.Before(*s.firstRunStart) {
		s.firstRunStart = &run.Started
	}

	if !run.Ended.IsZero() && (s.lastRunEnd == nil || run.Ended.After(*s.lastRunEnd)) {
		s.lastRunEnd = &run.Ended
	}
}

// TotalDuration returns the wall time from the first started run to the last ended one.
func (s *Summary) TotalDuration() time.Duration {
	if s.firstRunStart == nil || s.lastRunEnd == nil {
		return 0
	}

	return s.lastRunEnd.Sub(*s.firstRunStart)
}

// WriteSummary writes the summary to a writer.
func (r *Report) WriteSummary(w io.Writer) error {
	summary := r.Summarize()

	// Don't write anything if nothing ran.
	if summary.TotalTasks == 0 {
		return nil
	}

	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}

	return summary.Write(w)
}

// Write writes the summary to a writer.
func (s *Summary) Write(w io.Writer) error {
	colorizer := NewColorizer(s.shouldColor)

	lines := []string{
		fmt.Sprintf("%s  %s  %s",
			colorizer.headingTitleColorizer(runSummaryHeader),
			colorizer.headingUnitColorizer(fmt.Sprintf("%d tasks", s.TotalTasks)),
			colorizer.colorDuration(s.TotalDuration()),
		),
		prefix + strings.Repeat("─", separatorLineLength),
	}

	if s.Succeeded > 0 {
		lines = append(lines, s.entry(colorizer.successColorizer(successLabel), strconv.Itoa(s.Succeeded), colorizer))
	}

	if s.UpToDate > 0 {
		lines = append(lines, s.entry(colorizer.upToDateColorizer(upToDateLabel), strconv.Itoa(s.UpToDate), colorizer))
	}

	if len(s.Failed) > 0 {
		lines = append(lines, s.entry(colorizer.failureColorizer(failureLabel), strings.Join(s.Failed, ", "), colorizer))
	}

	if len(s.Blocked) > 0 {
		lines = append(lines, s.entry(colorizer.blockedColorizer(blockedLabel), strings.Join(s.Blocked, ", "), colorizer))
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	return nil
}

func (s *Summary) entry(label, value string, colorizer *Colorizer) string {
	padding := labelColumnWidth - len(stripANSI(label))
	if padding < 1 {
		padding = 1
	}

	return prefix + label + colorizer.paddingColorizer(strings.Repeat(".", padding)) + " " + value
}
