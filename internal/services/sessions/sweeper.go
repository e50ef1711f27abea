package sessions

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultCleanupInterval is the default time between eviction cycles.
const DefaultCleanupInterval = time.Hour

// Sweeper periodically evicts idle sessions from the store. It is owned by
// the process lifecycle: Start launches the background loop and Stop blocks
// until it has terminated.
type Sweeper struct {
	store    *Store
	interval time.Duration
	ttl      time.Duration
	logger   zerolog.Logger

	stop chan struct{}
	done chan struct{}
}

// SweeperConfig holds the configuration for the cleanup sweeper.
type SweeperConfig struct {
	Store    *Store
	Interval time.Duration
	TTL      time.Duration
}

// NewSweeper creates a new cleanup sweeper.
func NewSweeper(cfg SweeperConfig) *Sweeper {
	interval := cfg.Interval
	if interval == 0 {
		interval = DefaultCleanupInterval
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultIdleTTL
	}

	return &Sweeper{
		store:    cfg.Store,
		interval: interval,
		ttl:      ttl,
		logger:   log.With().Str("component", "session_sweeper").Logger(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background eviction loop.
func (s *Sweeper) Start() {
	go s.run()
}

// Stop signals the loop to exit and waits for it to terminate.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Sweeper) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

// sweep runs one eviction cycle. A failing cycle must never take down the
// process; it logs and waits for the next tick.
func (s *Sweeper) sweep() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("eviction cycle panicked")
		}
	}()

	evicted := s.store.EvictIdle(time.Now().UTC(), s.ttl)
	if evicted > 0 {
		s.logger.Info().
			Int("evicted", evicted).
			Int("remaining", s.store.Len()).
			Msg("evicted idle sessions")
	} else {
		s.logger.Debug().
			Int("active", s.store.Len()).
			Msg("no idle sessions found")
	}
}
