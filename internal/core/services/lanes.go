package services

import "sync"

// laneSet gives every ticket its own ordered lane. Work on one ticket is
// serialized while different tickets proceed in parallel. A lane exists
// only while it has holders or queued jobs.
type laneSet struct {
	mu    sync.Mutex
	lanes map[int64]*lane
	wg    sync.WaitGroup
}

type lane struct {
	sync    sync.Mutex
	pending []func()
	running bool
	refs    int
}

func newLaneSet() *laneSet {
	return &laneSet{lanes: make(map[int64]*lane)}
}

// Lock takes the ticket's critical section and returns its release func.
func (ls *laneSet) Lock(ticketID int64) func() {
	ls.mu.Lock()
	l := ls.getLocked(ticketID)
	l.refs++
	ls.mu.Unlock()

	l.sync.Lock()
	return func() {
		l.sync.Unlock()

		ls.mu.Lock()
		l.refs--
		ls.reapLocked(ticketID, l)
		ls.mu.Unlock()
	}
}

// Go queues job behind any earlier job for the same ticket. One goroutine
// per busy lane drains the queue in FIFO order.
func (ls *laneSet) Go(ticketID int64, job func()) {
	ls.wg.Add(1)

	ls.mu.Lock()
	l := ls.getLocked(ticketID)
	l.pending = append(l.pending, job)
	if l.running {
		ls.mu.Unlock()
		return
	}
	l.running = true
	ls.mu.Unlock()

	go ls.drain(ticketID, l)
}

// Wait blocks until every queued job has finished.
func (ls *laneSet) Wait() {
	ls.wg.Wait()
}

// Len reports the number of live lanes.
func (ls *laneSet) Len() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return len(ls.lanes)
}

func (ls *laneSet) drain(ticketID int64, l *lane) {
	for {
		ls.mu.Lock()
		if len(l.pending) == 0 {
			l.running = false
			ls.reapLocked(ticketID, l)
			ls.mu.Unlock()
			return
		}
		job := l.pending[0]
		l.pending[0] = nil
		l.pending = l.pending[1:]
		ls.mu.Unlock()

		func() {
			defer ls.wg.Done()
			job()
		}()
	}
}

func (ls *laneSet) getLocked(ticketID int64) *lane {
	l, ok := ls.lanes[ticketID]
	if !ok {
		l = &lane{}
		ls.lanes[ticketID] = l
	}
	return l
}

func (ls *laneSet) reapLocked(ticketID int64, l *lane) {
	if l.refs == 0 && !l.running && len(l.pending) == 0 {
		if ls.lanes[ticketID] == l {
			delete(ls.lanes, ticketID)
		}
	}
}
