package otp

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Pruner periodically sweeps expired entries out of a Registry.
type Pruner struct {
	cron *cron.Cron
}

// NewPruner schedules PruneExpired on the given cron spec (e.g. "@every 5m").
func NewPruner(registry *Registry, schedule string) (*Pruner, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if n := registry.PruneExpired(); n > 0 {
			log.Info().Int("pruned", n).Msg("Removed expired OTP entries")
		}
	})
	if err != nil {
		return nil, err
	}
	return &Pruner{cron: c}, nil
}

// Start begins the sweep schedule in its own goroutine.
func (p *Pruner) Start() {
	p.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (p *Pruner) Stop() {
	<-p.cron.Stop().Done()
}
