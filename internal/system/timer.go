package system

import (
	"time"

	coresys "github.com/l1jgo/arena/internal/core/system"
	"github.com/l1jgo/arena/internal/core/timer"
)

// TimerSystem advances the scheduler by one tick of simulation time, running
// deferred releases and boost reverts. Phase 2 (Update).
type TimerSystem struct {
	sched *timer.Scheduler
}

func NewTimerSystem(sched *timer.Scheduler) *TimerSystem {
	return &TimerSystem{sched: sched}
}

func (s *TimerSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *TimerSystem) Update(dt time.Duration) {
	s.sched.Advance(dt)
}
