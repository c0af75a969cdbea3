// Package tasks runs the background sweeps: overdue gear is flagged
// missing, long-missing gear goes dormant, and lapsed memberships drop
// to the expired role. Every flip lands in the transaction ledger under
// the reserved system identity, never silently.
package tasks

import (
	"context"
	"time"

	"github.com/ExcursionClub/ExCSystem/config"
	"github.com/ExcursionClub/ExCSystem/db"
	"github.com/ExcursionClub/ExCSystem/ledger"
	"github.com/ExcursionClub/ExCSystem/models"

	"github.com/robfig/cron"
	"go.uber.org/zap"
)

type Sweeper struct {
	Repo   *db.Repo
	Ledger *ledger.Ledger
	Log    *zap.SugaredLogger
	Cfg    config.Config

	c *cron.Cron
}

func NewSweeper(repo *db.Repo, led *ledger.Ledger, log *zap.SugaredLogger, cfg config.Config) *Sweeper {
	return &Sweeper{Repo: repo, Ledger: led, Log: log, Cfg: cfg, c: cron.New()}
}

// Start schedules the sweeps and returns immediately.
func (s *Sweeper) Start() error {
	if err := s.c.AddFunc("@hourly", s.SweepOverdue); err != nil {
		return err
	}
	if err := s.c.AddFunc("@hourly", s.SweepDormant); err != nil {
		return err
	}
	if err := s.c.AddFunc("@daily", s.SweepExpiredMembers); err != nil {
		return err
	}
	s.c.Start()
	return nil
}

func (s *Sweeper) Stop() { s.c.Stop() }

// SweepOverdue flags every checked-out piece past its due date as
// missing. A failure on one piece does not stop the rest.
func (s *Sweeper) SweepOverdue() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	gear, err := s.Repo.ListOverdueGear(ctx, time.Now().UTC())
	if err != nil {
		s.Log.Errorf("overdue sweep: list: %v", err)
		return
	}
	var flagged int
	for _, g := range gear {
		if _, err := s.Ledger.FlagMissing(ctx, g.RFID); err != nil {
			s.Log.Errorw("overdue sweep: flag missing", "rfid", g.RFID, "err", err)
			continue
		}
		flagged++
	}
	if len(gear) > 0 {
		s.Log.Infow("overdue sweep done", "candidates", len(gear), "flagged", flagged)
	}
}

// SweepDormant retires gear that has stayed missing past the configured
// window.
func (s *Sweeper) SweepDormant() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().Add(-s.Cfg.DormantAfter)
	gear, err := s.Repo.ListDormantCandidates(ctx, cutoff)
	if err != nil {
		s.Log.Errorf("dormant sweep: list: %v", err)
		return
	}
	var flagged int
	for _, g := range gear {
		if _, err := s.Ledger.FlagDormant(ctx, g.RFID); err != nil {
			s.Log.Errorw("dormant sweep: flag dormant", "rfid", g.RFID, "err", err)
			continue
		}
		flagged++
	}
	if len(gear) > 0 {
		s.Log.Infow("dormant sweep done", "candidates", len(gear), "flagged", flagged)
	}
}

// SweepExpiredMembers drops members whose membership lapsed to the
// expired role. Rejoining restores whatever they had before.
func (s *Sweeper) SweepExpiredMembers() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	members, err := s.Repo.ListExpiredActiveMembers(ctx, time.Now().UTC())
	if err != nil {
		s.Log.Errorf("member sweep: list: %v", err)
		return
	}
	var expired int
	for _, m := range members {
		if err := s.Repo.SetMemberRole(ctx, m.ID, models.RoleExpired); err != nil {
			s.Log.Errorw("member sweep: expire", "member", m.ID, "err", err)
			continue
		}
		expired++
	}
	if expired > 0 {
		s.Log.Infow("membership sweep done", "expired", expired)
	}
}
