// Package report aggregates classified threads over a reporting window and
// posts the result to the chat workspace.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"forumpulse/internal/storage"
	"forumpulse/internal/transport"
	"forumpulse/pkg/logx"
)

// Period is a reporting cadence.
type Period string

const (
	PeriodDaily     Period = "daily"
	PeriodWeekly    Period = "weekly"
	PeriodMonthly   Period = "monthly"
	PeriodQuarterly Period = "quarterly"
	PeriodYearly    Period = "yearly"
)

// Periods lists all cadences in dispatch order.
func Periods() []Period {
	return []Period{PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodQuarterly, PeriodYearly}
}

type Service struct {
	store  storage.Store
	sender transport.Adapter
	target transport.ChatTarget
	loc    *time.Location
	log    logx.Logger
}

func New(store storage.Store, sender transport.Adapter, target transport.ChatTarget, loc *time.Location, log logx.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, sender: sender, target: target, loc: loc, log: log}
}

// Send aggregates the window that just closed for the given period and posts
// it. Report jobs fire shortly after their window boundary, so "the previous
// day/week/month/quarter/year" relative to now is always the right window.
func (s *Service) Send(ctx context.Context, p Period) error {
	since, until := Window(p, time.Now().In(s.loc))

	sum, err := s.store.Summary(ctx, since, until)
	if err != nil {
		return fmt.Errorf("aggregate %s report: %w", p, err)
	}

	msg := Format(p, sum)
	if _, err := s.sender.SendText(ctx, s.target, msg, &transport.SendOptions{ParseMode: "HTML", DisablePreview: true}); err != nil {
		return fmt.Errorf("post %s report: %w", p, err)
	}
	s.log.Info("report posted",
		logx.String("period", string(p)),
		logx.Int("threads", sum.Threads),
		logx.Int("classified", sum.Classified))
	return nil
}

// Window returns the closed reporting window [since, until) preceding now.
func Window(p Period, now time.Time) (time.Time, time.Time) {
	y, m, d := now.Date()
	loc := now.Location()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)

	switch p {
	case PeriodWeekly:
		return today.AddDate(0, 0, -7), today
	case PeriodMonthly:
		monthStart := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return monthStart.AddDate(0, -1, 0), monthStart
	case PeriodQuarterly:
		qm := time.Month(((int(m)-1)/3)*3 + 1)
		quarterStart := time.Date(y, qm, 1, 0, 0, 0, 0, loc)
		return quarterStart.AddDate(0, -3, 0), quarterStart
	case PeriodYearly:
		yearStart := time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		return yearStart.AddDate(-1, 0, 0), yearStart
	default: // daily
		return today.AddDate(0, 0, -1), today
	}
}

// Format renders one summary as a chat-ready HTML message.
func Format(p Period, sum storage.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s thread report</b>\n", titleCase(string(p)))
	fmt.Fprintf(&b, "%s to %s\n\n", sum.Since.Format("2006-01-02"), sum.Until.Format("2006-01-02"))
	fmt.Fprintf(&b, "Threads: <b>%d</b>  Classified: <b>%d</b>\n", sum.Threads, sum.Classified)

	if len(sum.Labels) == 0 {
		b.WriteString("\nNo classified threads in this window.")
		return b.String()
	}

	b.WriteString("\n")
	for _, lc := range sum.Labels {
		fmt.Fprintf(&b, "• %s: %d (avg score %.2f)\n", lc.Label, lc.Count, lc.AvgScore)
	}
	return strings.TrimRight(b.String(), "\n")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
