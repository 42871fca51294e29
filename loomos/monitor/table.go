// Package monitor shows what the kernel is doing: a thread table fed by
// dispatch events, rendered with the console tail onto the framebuffer.
package monitor

import (
	"cmp"
	"sync"

	"golang.org/x/exp/slices"

	"loom/loomos/kernel"
)

// Row is one thread as last seen by the table.
type Row struct {
	ID         kernel.ThreadID
	Name       string
	Status     kernel.Status
	Dispatches uint64
}

// Snapshot is a consistent copy of the table.
type Snapshot struct {
	Rows       []Row
	Current    string
	Dispatches uint64
	Finished   int
	Time       uint64 // machine clock at the last event
}

// Table records dispatch events. Events arrive on kernel threads; Snapshot
// is safe to call from any goroutine.
type Table struct {
	mu         sync.Mutex
	rows       []Row // by ID
	current    string
	dispatches uint64
	finished   int
	now        uint64
	keep       bool
	clock      func() uint64
}

var _ kernel.Observer = (*Table)(nil)

// NewTable returns an empty table. Finished threads are dropped from the
// table unless keepFinished is set. clock, if not nil, is sampled on every
// event; it is only called from kernel threads.
func NewTable(keepFinished bool, clock func() uint64) *Table {
	return &Table{keep: keepFinished, clock: clock}
}

func (t *Table) ThreadReady(th *kernel.Thread) {
	t.set(th, kernel.StatusReady)
}

func (t *Table) ThreadRunning(th *kernel.Thread) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.tick()
	r := t.row(th)
	r.Status = kernel.StatusRunning
	r.Dispatches++
	t.current = th.String()
	t.dispatches++
}

func (t *Table) ThreadBlocked(th *kernel.Thread) {
	t.set(th, kernel.StatusBlocked)
}

func (t *Table) ThreadFinishing(th *kernel.Thread) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.tick()
	t.finished++
	if !t.keep {
		if i, ok := t.find(th.ID()); ok {
			t.rows = slices.Delete(t.rows, i, i+1)
		}
		return
	}
	t.row(th).Status = kernel.StatusFinished
}

// Snapshot copies the current state.
func (t *Table) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Snapshot{
		Rows:       slices.Clone(t.rows),
		Current:    t.current,
		Dispatches: t.dispatches,
		Finished:   t.finished,
		Time:       t.now,
	}
}

func (t *Table) set(th *kernel.Thread, status kernel.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tick()
	t.row(th).Status = status
}

func (t *Table) tick() {
	if t.clock != nil {
		t.now = t.clock()
	}
}

func (t *Table) find(id kernel.ThreadID) (int, bool) {
	return slices.BinarySearchFunc(t.rows, id, func(r Row, id kernel.ThreadID) int {
		return cmp.Compare(r.ID, id)
	})
}

// row returns the row for th, inserting it if needed. t.mu must be held.
func (t *Table) row(th *kernel.Thread) *Row {
	i, ok := t.find(th.ID())
	if !ok {
		t.rows = slices.Insert(t.rows, i, Row{ID: th.ID()})
	}
	r := &t.rows[i]
	r.Name = th.Name()
	return r
}
