// Package worker implements the transaction worker of spec.md §4.10: a
// goroutine that runs a batch of transactions to completion, retrying
// each one indefinitely on abort. Grounded on the teacher's
// manager/transaction_manager.go retry-on-deadlock pattern, adapted from
// "retry the one deadlocked statement" to "retry the whole transaction",
// since spec.md's no-wait policy aborts a transaction wholesale rather
// than one statement.
package worker

import (
	"sync"

	"github.com/zhukovaskychina/lstore-engine/internal/txn"
	"github.com/zhukovaskychina/lstore-engine/internal/xlog"
)

// Stats records how many attempts a transaction took to commit, per
// spec.md §4.10's "completion statistics are recorded per transaction".
type Stats struct {
	TxnID    int64
	Attempts int
	Aborted  int
}

// Worker owns a goroutine and a list of transactions to run, per
// spec.md §4.10. Multiple Workers run concurrently across goroutines;
// each Worker itself runs its transactions sequentially on its own
// goroutine.
type Worker struct {
	mu      sync.Mutex
	pending []*txn.Transaction
	stats   map[int64]*Stats

	wg      sync.WaitGroup
	started bool
}

// New returns an empty transaction worker.
func New() *Worker {
	return &Worker{stats: make(map[int64]*Stats)}
}

// AddTransaction enqueues t to be run once Run is called.
func (w *Worker) AddTransaction(t *txn.Transaction) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, t)
	w.stats[t.ID] = &Stats{TxnID: t.ID}
}

// Run spawns the worker's goroutine, which runs every queued transaction
// to completion — retrying indefinitely on abort, since the no-wait
// lock policy guarantees a retry eventually succeeds under a fair
// scheduler, per spec.md §4.10.
func (w *Worker) Run() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	pending := make([]*txn.Transaction, len(w.pending))
	copy(pending, w.pending)
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		log := xlog.For("txn_worker", nil)
		for _, t := range pending {
			for {
				w.mu.Lock()
				st := w.stats[t.ID]
				st.Attempts++
				w.mu.Unlock()

				if t.Run() {
					break
				}

				w.mu.Lock()
				w.stats[t.ID].Aborted++
				w.mu.Unlock()
				log.WithField("txn_id", t.ID).Debug("transaction aborted, retrying")
			}
		}
	}()
}

// Join waits for the worker's goroutine to finish running every queued
// transaction.
func (w *Worker) Join() {
	w.wg.Wait()
}

// Stats returns a snapshot of per-transaction attempt counts.
func (w *Worker) Stats() map[int64]Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[int64]Stats, len(w.stats))
	for id, s := range w.stats {
		out[id] = *s
	}
	return out
}
