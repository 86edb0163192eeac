package weibo

import (
	"fmt"
	"strings"
)

// maxListedFailures bounds the failed-topic listing in the summary.
const maxListedFailures = 5

// Tally collects check-in outcomes by topic name.
type Tally struct {
	Signed []string
	Repeat []string
	Failed []string
}

// Add records one outcome.
func (t *Tally) Add(name string, o Outcome) {
	switch o {
	case Signed:
		t.Signed = append(t.Signed, name)
	case Repeat:
		t.Repeat = append(t.Repeat, name)
	default:
		t.Failed = append(t.Failed, name)
	}
}

// Total is the number of processed topics.
func (t Tally) Total() int {
	return len(t.Signed) + len(t.Repeat) + len(t.Failed)
}

// Rate is the share of topics that ended checked in, as a percentage.
func (t Tally) Rate() float64 {
	if t.Total() == 0 {
		return 0
	}
	return float64(len(t.Signed)+len(t.Repeat)) / float64(t.Total()) * 100
}

// Body renders the summary notification text. Failed topic names are
// listed only when there are few of them.
func (t Tally) Body() string {
	var b strings.Builder
	b.WriteString("签到统计\n")
	fmt.Fprintf(&b, "新签到: %d\n", len(t.Signed))
	fmt.Fprintf(&b, "已签过: %d\n", len(t.Repeat))
	fmt.Fprintf(&b, "失败: %d\n", len(t.Failed))
	fmt.Fprintf(&b, "完成率: %.1f%%", t.Rate())
	if n := len(t.Failed); n > 0 && n <= maxListedFailures {
		b.WriteString("\n\n失败超话:\n" + strings.Join(t.Failed, "\n"))
	}
	return b.String()
}
