// Package dispatch moves accepted runs through their lifecycle: a FIFO
// queue feeds a single processing loop so that at most one walker ensemble
// occupies the propagation workers at a time.
package dispatch

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/phaseless-team/afqmc-engine/core"
)

type statusManager interface {
	Update(run core.Run, status core.Status)
	Delete(runID string)
	Get(runID string) []core.Status
}

type normalStatusManager struct {
	statusHistory map[string][]core.Status
	mu            sync.RWMutex
}

func newNormalStatusManager() *normalStatusManager {
	return &normalStatusManager{
		statusHistory: make(map[string][]core.Status),
		mu:            sync.RWMutex{},
	}
}

func (m *normalStatusManager) Update(run core.Run, status core.Status) {
	run.RunData().Status = status
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusHistory[run.RunData().ID] = append(m.statusHistory[run.RunData().ID], status)
}

func (m *normalStatusManager) Delete(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.statusHistory, runID)
}

func (m *normalStatusManager) Get(runID string) []core.Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statusHistory[runID]
}

type NormalScheduler struct {
	queue         *NormalQueue
	statusManager statusManager
}

type runInDispatch struct {
	run      core.Run
	finished *sync.WaitGroup
}

func (n *NormalScheduler) Setup(conf *core.Conf) error {
	n.queue = &NormalQueue{}
	n.queue.Setup(conf)
	n.statusManager = newNormalStatusManager()
	return nil
}

func (n *NormalScheduler) Start() error {
	go func() {
		for {
			zap.L().Debug("checking the queue...")
			rid, err := n.queue.Dequeue(true)
			if err != nil {
				zap.L().Error(fmt.Sprintf("failed to get run from queue. Reason:%s", err))
				continue
			}
			runID := rid.run.RunData().ID
			zap.L().Debug(fmt.Sprintf("processing run:%s", runID))
			n.statusManager.Update(rid.run, core.RUNNING)
			rid.run.RunContext().StoreChan <- rid.run.Clone()
			n.processRun(rid.run)
			zap.L().Debug(fmt.Sprintf("finished to process run(%s), status:%s", runID, rid.run.RunData().Status))
			rid.finished.Done()
		}
	}()
	return nil
}

// A run that panics mid-propagation must not take the processing loop
// down with it.
func (n *NormalScheduler) processRun(r core.Run) {
	defer func() {
		if p := recover(); p != nil {
			zap.L().Error(fmt.Sprintf("recovered from panic in run(%s):%v", r.RunData().ID, p))
			core.SetFailureWithError(r, fmt.Errorf("panic in process:%v", p))
		}
	}()
	r.Process()
}

func (n *NormalScheduler) HandleRun(r core.Run) {
	zap.L().Debug(fmt.Sprintf("starting to handle run(%s) in %s", r.RunData().ID, r.RunData().Status))
	go func() {
		defer func() {
			zap.L().Debug(fmt.Sprintf("status history run(%s): %v", r.RunData().ID, n.statusManager.Get(r.RunData().ID)))
			n.statusManager.Delete(r.RunData().ID)
		}()
		n.handleImpl(r)
	}()
}

func (n *NormalScheduler) HandleRunForTest(r core.Run, wg *sync.WaitGroup) {
	go func() {
		defer wg.Done()
		n.handleImpl(r)
	}()
}

func (n *NormalScheduler) handleImpl(r core.Run) {
	for {
		runID := r.RunData().ID
		st := r.RunData().Status // must be ready
		n.statusManager.Update(r, st)
		zap.L().Debug(fmt.Sprintf("handling run(%s) in %s starting", runID, st))
		if r.RunData().Status != core.READY {
			zap.L().Error(
				fmt.Sprintf("finished to handle run(%s) with unexpected status:%s", runID, r.RunData().Status.String()))
			// not write to store
			return
		}
		zap.L().Debug(fmt.Sprintf("handling run(%s). start pre-processing", runID))
		r.PreProcess()
		r.RunContext().StoreChan <- r.Clone()
		if r.IsFinished() {
			zap.L().Debug(fmt.Sprintf("finished to handle run(%s) after pre-processing", runID))
			n.statusManager.Update(r, r.RunData().Status)
			return
		}
		var wg sync.WaitGroup
		wg.Add(1)
		rid := &runInDispatch{
			run:      r,
			finished: &wg,
		}
		n.queue.queueChan <- rid
		wg.Wait() // wait for processing
		zap.L().Debug(fmt.Sprintf("Processed Run Status: %s", r.RunData().Status))
		if r.IsFinished() {
			r.RunContext().StoreChan <- r.Clone()
			zap.L().Debug(fmt.Sprintf("finished to handle run(%s) after processing with status:%s",
				runID, r.RunData().Status.String()))
			n.statusManager.Update(r, r.RunData().Status)
			return
		}
		zap.L().Debug(fmt.Sprintf("handling run(%s). start post-processing", runID))
		r.PostProcess()
		if r.IsFinished() {
			zap.L().Debug(fmt.Sprintf("finished to handle run(%s) after post-processing with status:%s",
				runID, r.RunData().Status.String()))
			n.statusManager.Update(r, r.RunData().Status)
			r.RunContext().StoreChan <- r.Clone()
			return
		}
		zap.L().Debug(fmt.Sprintf("one more loop for run(%s)", runID))
	}
}

func (n *NormalScheduler) GetCurrentQueueSize() int {
	return n.queue.fifo.GetLen()
}

func (n *NormalScheduler) IsOverRefillThreshold() bool {
	return n.queue.refillThreshold <= n.queue.fifo.GetLen()
}
