// Package jobs holds the scheduled job implementations.
package jobs

import (
	"context"

	"github.com/wonny/futsync/internal/syncer"
	"github.com/wonny/futsync/pkg/logger"
)

// DailySync runs the full synchronization sequence once per business
// day after market close.
type DailySync struct {
	orchestrator *syncer.Orchestrator
	schedule     string
	log          *logger.Logger
}

// NewDailySync creates the daily sync job with its cron schedule.
func NewDailySync(o *syncer.Orchestrator, schedule string, log *logger.Logger) *DailySync {
	return &DailySync{
		orchestrator: o,
		schedule:     schedule,
		log:          log.WithField("job", "daily_sync"),
	}
}

func (j *DailySync) Name() string {
	return "daily_sync"
}

func (j *DailySync) Schedule() string {
	return j.schedule
}

func (j *DailySync) Run(ctx context.Context) error {
	report, err := j.orchestrator.RunDaily(ctx, nil)
	if err != nil {
		return err
	}

	j.log.WithFields(map[string]interface{}{
		"master_inserted": report.Master.Inserted,
		"quotes_success":  report.Quotes.Success,
		"quotes_skipped":  report.Quotes.Skipped,
		"quotes_failed":   report.Quotes.Failed,
		"mains_success":   report.MainContracts.Success,
	}).Info("Daily sync report")
	return nil
}
