package refreshguard

import (
	"context"
	"log"
	"sync"
	"time"
)

// sweeper periodically deletes refresh records whose expiry plus the
// configured grace has passed. Deleting expired records is garbage
// collection only; expiry checks never depend on the sweeper having run.
type sweeper struct {
	manager *Manager
	cfg     SweeperConfig

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func newSweeper(m *Manager, cfg SweeperConfig) *sweeper {
	s := &sweeper{
		manager: m,
		cfg:     cfg,
		done:    make(chan struct{}),
	}

	s.wg.Add(1)
	go s.run()

	return s
}

func (s *sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}

func (s *sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	if _, err := s.manager.sweepOnce(ctx); err != nil {
		log.Print("refreshguard: sweep pass failed")
	}
}

// Stop halts the background loop and waits for an in-flight pass to finish.
func (s *sweeper) Stop() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
}
