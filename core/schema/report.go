package schema

import (
	"fmt"
	"strings"
	"time"
)

// Report is the result of one applier run, one outcome per catalog entry in
// catalog order.
type Report struct {
	RunID     string        `json:"run_id"`
	Dialect   string        `json:"dialect"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Outcomes  []Outcome     `json:"outcomes"`
}

func (r *Report) Count(action Action) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, o := range r.Outcomes {
		if o.Action == action {
			n++
		}
	}
	return n
}

func (r *Report) HasFailures() bool {
	return r.Count(ActionFailed) > 0
}

func (r *Report) Failed() []Outcome {
	var out []Outcome
	if r == nil {
		return out
	}
	for _, o := range r.Outcomes {
		if o.Action == ActionFailed {
			out = append(out, o)
		}
	}
	return out
}

// Lines renders one human-readable line per catalog column.
func (r *Report) Lines() []string {
	if r == nil {
		return nil
	}
	lines := make([]string, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		line := fmt.Sprintf("%s: %s (%s)", o.Column, o.Action, r.Dialect)
		if o.Reason != "" {
			line += " - " + o.Reason
		}
		lines = append(lines, line)
	}
	return lines
}

func (r *Report) Text() string {
	var b strings.Builder
	if r.HasFailures() {
		b.WriteString("Schema update finished with failures.\n")
	} else {
		b.WriteString("Schema updated successfully!\n")
	}
	fmt.Fprintf(&b, "run=%s dialect=%s\n\nResults:\n", r.RunID, r.Dialect)
	for _, line := range r.Lines() {
		b.WriteString(line)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nadded=%d exists=%d failed=%d\n", r.Count(ActionAdded), r.Count(ActionAlreadyPresent), r.Count(ActionFailed))
	return b.String()
}
