package timer

import (
	"container/heap"
	"time"
)

// TaskID identifies a scheduled callback. Zero is never issued.
type TaskID uint64

type task struct {
	id    TaskID
	due   time.Duration
	fn    func()
	index int
}

type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].due != h[j].due {
		return h[i].due < h[j].due
	}
	return h[i].id < h[j].id
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// Scheduler runs deferred callbacks against simulation time. It is advanced by
// the tick loop and never blocks; callbacks run on the loop goroutine inside
// Advance, in due order, ties broken by scheduling order.
type Scheduler struct {
	now    time.Duration
	nextID TaskID
	tasks  taskHeap
	byID   map[TaskID]*task
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		byID: make(map[TaskID]*task),
	}
}

// Now returns the simulation time accumulated through Advance.
func (s *Scheduler) Now() time.Duration {
	return s.now
}

// After schedules fn to run once d of simulation time has elapsed.
// A non-positive d runs fn on the next Advance.
func (s *Scheduler) After(d time.Duration, fn func()) TaskID {
	if d < 0 {
		d = 0
	}
	s.nextID++
	t := &task{id: s.nextID, due: s.now + d, fn: fn}
	heap.Push(&s.tasks, t)
	s.byID[t.id] = t
	return t.id
}

// Cancel removes a pending callback. It reports whether the task was pending.
func (s *Scheduler) Cancel(id TaskID) bool {
	t, ok := s.byID[id]
	if !ok {
		return false
	}
	heap.Remove(&s.tasks, t.index)
	delete(s.byID, id)
	return true
}

// Pending returns the number of callbacks not yet run.
func (s *Scheduler) Pending() int {
	return len(s.tasks)
}

// Advance moves simulation time forward by dt and runs every callback that
// became due. Callbacks scheduled from inside a callback with a zero delay run
// in the same Advance. It returns the number of callbacks run.
func (s *Scheduler) Advance(dt time.Duration) int {
	if dt > 0 {
		s.now += dt
	}
	ran := 0
	for len(s.tasks) > 0 && s.tasks[0].due <= s.now {
		t := heap.Pop(&s.tasks).(*task)
		delete(s.byID, t.id)
		t.fn()
		ran++
	}
	return ran
}
