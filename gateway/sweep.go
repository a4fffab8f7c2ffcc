package gateway

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/screwyforcepush/daily-shit-list/domain"
)

// SweepPolicy controls the stale-task sweep. The idle threshold and the
// scope are deliberately configuration, not constants: variants of this
// workflow disagree on both.
type SweepPolicy struct {
	// IdleAfter is how long a task may go without an update before the
	// sweep re-statuses it. Zero disables sweeping.
	IdleAfter time.Duration
	// From lists the statuses the sweep considers. Defaults to active.
	From []domain.Status
	// To is the status swept tasks move to. Defaults to planned.
	To domain.Status
	// Reason is recorded as blockedReason when To is the blocked status.
	Reason string
}

func (p SweepPolicy) normalized() SweepPolicy {
	if len(p.From) == 0 {
		p.From = []domain.Status{domain.StatusActive}
	}
	if p.To == "" {
		p.To = domain.StatusPlanned
	}
	if p.To == domain.StatusBlocked && p.Reason == "" {
		p.Reason = "swept: no activity"
	}
	return p
}

func (p SweepPolicy) sweeps(s domain.Status) bool {
	for _, from := range p.From {
		if from == s {
			return true
		}
	}
	return false
}

// runSweep re-statuses every task that sat untouched past the idle
// threshold. It emits a single audit event covering all swept tasks.
func (g *Gateway) runSweep(ctx context.Context, source string) (Response, error) {
	if g.sweep.IdleAfter <= 0 {
		return Response{}, domain.ArgumentError{Field: "sweep", Reason: "sweep policy is not configured"}
	}
	tasks, err := g.repo.List(ctx, "", "")
	if err != nil {
		return Response{}, err
	}
	now := g.now()
	cutoff := now.Add(-g.sweep.IdleAfter)
	var swept []string
	for _, t := range tasks {
		if !g.sweep.sweeps(t.Status) || !t.UpdatedAt.Before(cutoff) {
			continue
		}
		t.Transition(g.sweep.To, g.sweep.Reason, now)
		if err := g.repo.Update(ctx, t); err != nil {
			return Response{}, err
		}
		swept = append(swept, t.ID)
	}
	g.emit(ctx, source, "sweep", "", map[string]any{
		"swept":   len(swept),
		"taskIds": swept,
		"cutoff":  cutoff,
	})
	view, err := g.View(ctx)
	if err != nil {
		return Response{}, err
	}
	n := len(swept)
	return Response{OK: true, Op: "sweep", Swept: swept, Count: &n, View: view}, nil
}

// ScheduleSweep registers the sweep op on the given cron runner.
func ScheduleSweep(c *cron.Cron, spec string, g *Gateway, logger *log.Logger) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		resp, err := g.Apply(ctx, "sweeper", domain.SweepCommand{})
		if err != nil {
			logger.Warnf("scheduled sweep failed: %v", err)
			return
		}
		if len(resp.Swept) > 0 {
			logger.WithField("swept", len(resp.Swept)).Info("sweep re-statused stale tasks")
		}
	})
}
