package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"forumpulse/internal/config"
	"forumpulse/internal/orchestrator"
	"forumpulse/internal/report"
	"forumpulse/internal/storage"
	"forumpulse/pkg/logx"
)

const defaultIngestSchedule = "*/15 * * * *"

// defaultReportSchedules stagger dispatch so windows that close at the same
// boundary (e.g. Jan 1) don't post on top of each other.
var defaultReportSchedules = map[report.Period]string{
	report.PeriodDaily:     "0 8 * * *",
	report.PeriodWeekly:    "30 8 * * 1",
	report.PeriodMonthly:   "0 9 1 * *",
	report.PeriodQuarterly: "30 9 1 1,4,7,10 *",
	report.PeriodYearly:    "0 10 1 1 *",
}

func orchestratorConfig(cfg *config.Config) (orchestrator.Config, error) {
	cooldown, err := config.ParseDurationField("orchestrator.cooldown", cfg.Orchestrator.Cooldown)
	if err != nil {
		return orchestrator.Config{}, err
	}
	heartbeat, err := config.ParseDurationField("orchestrator.heartbeat", cfg.Orchestrator.Heartbeat)
	if err != nil {
		return orchestrator.Config{}, err
	}
	return orchestrator.Config{
		Timezone:       cfg.Orchestrator.Timezone,
		MaxFailures:    cfg.Orchestrator.MaxFailures,
		Cooldown:       cooldown,
		HeartbeatEvery: heartbeat,
		HistorySize:    cfg.Orchestrator.HistorySize,
	}, nil
}

func locationOf(tz string) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// registerJobs installs the fixed job set: one fetch-and-classify cycle plus
// one report dispatch job per cadence.
func (a *App) registerJobs(cfg *config.Config) error {
	ingestSpec := strings.TrimSpace(cfg.Orchestrator.IngestSchedule)
	if ingestSpec == "" {
		ingestSpec = defaultIngestSchedule
	}
	if err := a.orch.Register("ingest", ingestSpec, a.runIngestCycle); err != nil {
		return fmt.Errorf("register ingest job: %w", err)
	}

	overrides := map[report.Period]string{
		report.PeriodDaily:     cfg.Reports.Daily,
		report.PeriodWeekly:    cfg.Reports.Weekly,
		report.PeriodMonthly:   cfg.Reports.Monthly,
		report.PeriodQuarterly: cfg.Reports.Quarterly,
		report.PeriodYearly:    cfg.Reports.Yearly,
	}
	for _, p := range report.Periods() {
		spec := strings.TrimSpace(overrides[p])
		if spec == "" {
			spec = defaultReportSchedules[p]
		}
		if strings.EqualFold(spec, "off") {
			a.log.Info("report cadence disabled", logx.String("period", string(p)))
			continue
		}
		period := p
		name := "report-" + string(p)
		err := a.orch.Register(name, spec, func(ctx context.Context) error {
			return a.reports.Send(ctx, period)
		})
		if err != nil {
			return fmt.Errorf("register %s job: %w", name, err)
		}
	}
	return nil
}

// runIngestCycle is the handler of the "ingest" job: fetch the latest
// threads, persist them, then classify whatever is still unlabelled. Any
// error fails the whole cycle; the orchestrator's failure accounting owns
// retry-via-next-tick semantics.
func (a *App) runIngestCycle(ctx context.Context) error {
	threads, err := a.forum.Latest(ctx)
	if err != nil {
		return fmt.Errorf("fetch threads: %w", err)
	}

	rows := make([]storage.Thread, 0, len(threads))
	for _, t := range threads {
		rows = append(rows, storage.Thread{
			ID:        t.ID,
			Title:     t.Title,
			Excerpt:   t.Excerpt,
			Author:    t.Author,
			Replies:   t.Replies,
			CreatedAt: t.CreatedAt,
		})
	}
	stored, err := a.store.UpsertThreads(ctx, rows)
	if err != nil {
		return fmt.Errorf("store threads: %w", err)
	}

	batch := a.ingestBatch
	if batch <= 0 {
		batch = 50
	}
	pending, err := a.store.PendingThreads(ctx, batch)
	if err != nil {
		return fmt.Errorf("load pending threads: %w", err)
	}

	classified := 0
	for _, t := range pending {
		text := strings.TrimSpace(t.Title + "\n" + t.Excerpt)
		res, err := a.classifier.Classify(ctx, text)
		if err != nil {
			// Partial progress is kept; the failure still counts against the
			// cycle so the orchestrator sees it.
			return fmt.Errorf("classify thread %d (%d/%d done): %w", t.ID, classified, len(pending), err)
		}
		err = a.store.SaveClassification(ctx, storage.Classification{
			ThreadID:     t.ID,
			Label:        res.Label,
			Score:        res.Score,
			ClassifiedAt: time.Now(),
		})
		if err != nil {
			return fmt.Errorf("save classification for thread %d: %w", t.ID, err)
		}
		classified++
	}

	a.log.Info("ingest cycle completed",
		logx.Int("fetched", len(threads)),
		logx.Int("stored", stored),
		logx.Int("classified", classified))
	return nil
}
