package update

import (
	"fmt"

	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/sandeepkv93/dayplan/internal/recurrence"
)

const previewCount = 5

// recurrenceSummary describes how t repeats and lists its next dates from
// the shown day on.
func (m Model) recurrenceSummary(t model.Task) (string, []string) {
	if !t.IsRecurring {
		return "one-off on " + m.Date.String(), nil
	}
	rule := recurrence.RuleOf(t)
	summary := fmt.Sprintf("%s, every %d", rule.Type, rule.Interval)
	if rule.End != nil {
		summary += " until " + rule.End.String()
	}
	dates, err := rule.Preview(m.Date, previewCount)
	if err != nil {
		return summary + " (" + err.Error() + ")", nil
	}
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, fmt.Sprintf("%s %s", d.Weekday().String()[:3], d))
	}
	return summary, out
}
