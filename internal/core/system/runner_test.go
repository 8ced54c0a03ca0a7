package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordSystem struct {
	name  string
	phase Phase
	log   *[]string
}

func (s recordSystem) Phase() Phase { return s.phase }

func (s recordSystem) Update(time.Duration) { *s.log = append(*s.log, s.name) }

func TestRunnerOrdersByPhaseThenRegistration(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(recordSystem{"cleanup", PhaseCleanup, &log})
	r.Register(recordSystem{"update-a", PhaseUpdate, &log})
	r.Register(recordSystem{"input", PhaseInput, &log})
	r.Register(recordSystem{"update-b", PhaseUpdate, &log})

	r.Tick(time.Millisecond)
	assert.Equal(t, []string{"input", "update-a", "update-b", "cleanup"}, log)
	assert.Equal(t, uint64(1), r.Ticks())

	log = nil
	r.TickPhase(PhaseUpdate, time.Millisecond)
	assert.Equal(t, []string{"update-a", "update-b"}, log)
	assert.Equal(t, uint64(1), r.Ticks())
}
