// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultPruneSchedule runs retention once a day at 03:00 local time.
const DefaultPruneSchedule = "0 3 * * *"

// Retention periodically removes entries older than MaxAge.
type Retention struct {
	journal  *Journal
	maxAge   time.Duration
	schedule string
	cron     *cron.Cron
	logger   *zap.Logger
}

// NewRetention validates schedule (standard 5-field cron, or a descriptor
// such as "@daily") and prepares a retention job. It does not start it.
func NewRetention(j *Journal, maxAge time.Duration, schedule string) (*Retention, error) {
	if maxAge <= 0 {
		return nil, fmt.Errorf("retention max age must be positive, got %s", maxAge)
	}
	if schedule == "" {
		schedule = DefaultPruneSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}

	r := &Retention{
		journal:  j,
		maxAge:   maxAge,
		schedule: schedule,
		cron:     cron.New(),
		logger:   j.logger.With(zap.String("component", "audit_retention")),
	}
	if _, err := r.cron.AddFunc(schedule, func() { _, _ = r.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("failed to add prune job: %w", err)
	}
	return r, nil
}

// RunOnce prunes immediately.
func (r *Retention) RunOnce(ctx context.Context) (int64, error) {
	cutoff := r.journal.now().Add(-r.maxAge)
	n, err := r.journal.Prune(ctx, cutoff)
	if err != nil {
		r.logger.Warn("journal prune failed", zap.Error(err))
		return 0, err
	}
	r.logger.Info("journal pruned",
		zap.Int64("removed", n),
		zap.Time("cutoff", cutoff))
	return n, nil
}

// Start runs the schedule in the background.
func (r *Retention) Start() {
	r.cron.Start()
	r.logger.Debug("retention scheduled",
		zap.String("schedule", r.schedule),
		zap.Duration("max_age", r.maxAge))
}

// Stop halts the schedule and waits for a running prune to finish or ctx to
// end.
func (r *Retention) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
