package executor

import (
	"context"
	"sync"

	"github.com/eyal0/pcb2gcode-tester/internal/scenario"
)

// DefaultWorkers is the pool size used when the operator does not
// override it with --jobs.
const DefaultWorkers = 3

// Pool fans scenarios out to a fixed number of workers.
type Pool struct {
	// Workers is the number of concurrent scenario runs; values below
	// one run sequentially.
	Workers int

	// Exec runs individual scenarios.
	Exec *Executor
}

// Run executes every scenario and calls emit exactly once per
// scenario, in table order, as soon as the outcome and all its
// predecessors are known. The returned counts satisfy
// passed+failed == len(scs).
//
// One scenario failing never aborts its siblings. Cancellation is
// graceful too: a canceled ctx turns the remaining scenarios into
// StatusError outcomes but still emits all of them.
func (p *Pool) Run(ctx context.Context, scs []scenario.Scenario, emit func(Outcome)) (passed, failed int) {
	if len(scs) == 0 {
		return 0, 0
	}
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(scs) {
		workers = len(scs)
	}

	type task struct {
		pos int
		sc  scenario.Scenario
	}
	workCh := make(chan task)
	resCh := make(chan Outcome)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range workCh {
				resCh <- p.Exec.RunScenario(ctx, t.pos, t.sc)
			}
		}()
	}
	go func() {
		for i, sc := range scs {
			workCh <- task{pos: i, sc: sc}
		}
		close(workCh)
	}()
	go func() {
		wg.Wait()
		close(resCh)
	}()

	ordered := newOrderedEmitter(func(o Outcome) {
		if o.Passed() {
			passed++
		} else {
			failed++
		}
		if emit != nil {
			emit(o)
		}
	})
	for o := range resCh {
		ordered.add(o)
	}
	return passed, failed
}

// orderedEmitter buffers out-of-order outcomes and releases them in
// Position order.
type orderedEmitter struct {
	next    int
	pending map[int]Outcome
	emit    func(Outcome)
}

func newOrderedEmitter(emit func(Outcome)) *orderedEmitter {
	return &orderedEmitter{pending: make(map[int]Outcome), emit: emit}
}

func (e *orderedEmitter) add(o Outcome) {
	e.pending[o.Position] = o
	for {
		buffered, ok := e.pending[e.next]
		if !ok {
			return
		}
		delete(e.pending, e.next)
		e.next++
		e.emit(buffered)
	}
}
