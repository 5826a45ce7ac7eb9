package main

import (
	"context"

	"go.sunspec.dev/internal/common/readiness"
	"go.sunspec.dev/internal/common/shutdown"
	"go.sunspec.dev/internal/supervisor"
)

// supervisorService adapts *supervisor.Supervisor to lifecycle.Service.
// Its own shutdown.Watch is fired from Stop rather than relying on context
// cancellation directly, since the supervisor's poller/drain loops already
// select on that watch.
type supervisorService struct {
	sup   *supervisor.Supervisor
	watch *shutdown.Watch
	done  chan struct{}
}

func newSupervisorService(sup *supervisor.Supervisor, watch *shutdown.Watch) *supervisorService {
	return &supervisorService{sup: sup, watch: watch, done: make(chan struct{})}
}

func (s *supervisorService) Name() string { return "supervisor" }

func (s *supervisorService) Start(ctx context.Context) error {
	s.sup.Run(ctx)
	close(s.done)
	return nil
}

func (s *supervisorService) Stop(ctx context.Context) error {
	s.watch.Fire()
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *supervisorService) Health() error { return nil }

// readinessService adapts *readiness.Notifier to lifecycle.Service, sending
// the supervisor's startup/shutdown signals at the right points in the
// service lifecycle instead of main running them inline.
type readinessService struct {
	notifier *readiness.Notifier
	stop     chan struct{}
}

func newReadinessService(notifier *readiness.Notifier) *readinessService {
	return &readinessService{notifier: notifier, stop: make(chan struct{})}
}

func (r *readinessService) Name() string { return "readiness" }

func (r *readinessService) Start(ctx context.Context) error {
	r.notifier.Ready()
	r.notifier.WatchdogLoop(r.stop)
	<-ctx.Done()
	return nil
}

func (r *readinessService) Stop(ctx context.Context) error {
	r.notifier.Stopping()
	close(r.stop)
	return nil
}

func (r *readinessService) Health() error { return nil }
