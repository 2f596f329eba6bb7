package core

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type MemoryStore struct {
	storeMap  map[string]Run
	storeChan <-chan Run
	innerIDs  map[string]struct{}
	mu        sync.RWMutex
}

func (d *MemoryStore) Setup(sc StoreChan, c *Conf) error {
	d.storeMap = make(map[string]Run)
	d.innerIDs = make(map[string]struct{})
	d.storeChan = sc
	go func() {
		for {
			run := <-d.storeChan
			if run == nil { //when storeChan is closed
				return
			}
			zap.L().Debug(fmt.Sprintf("[MemoryStore] Received %s", run.RunData().ID))
			if err := d.Update(run); err != nil {
				zap.L().Error(fmt.Sprintf("failed to update a run(%s). Reason:%s",
					run.RunData().ID, err.Error()))
			}
		}
	}()
	return nil
}

func (d *MemoryStore) Insert(r Run) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.storeMap[r.RunData().ID]; ok {
		return ErrorRunIDConflict
	}
	d.storeMap[r.RunData().ID] = r
	return nil
}

func (d *MemoryStore) Get(runID string) (Run, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if val, ok := d.storeMap[runID]; ok {
		return val, nil
	}
	err := fmt.Errorf("not found %s", runID)
	zap.L().Info("[MemoryStore]", zap.Field(zap.Error(err)))
	return &NormalRun{}, err
}

func (d *MemoryStore) Update(r Run) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.storeMap[r.RunData().ID] = r
	return nil
}

func (d *MemoryStore) Delete(runID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.storeMap[runID]; ok {
		delete(d.storeMap, runID)
		zap.L().Info(fmt.Sprintf("[MemoryStore] deleted %s from store", runID))
		return nil
	}
	err := fmt.Errorf("failed to find %s", runID)
	zap.L().Info("[MemoryStore]", zap.Field(zap.Error(err)))
	return err
}

func (d *MemoryStore) UpdateCheckpoint(runID string, checkpoint CheckpointRaw) {
	d.mu.Lock()
	defer d.mu.Unlock()
	run := d.storeMap[runID]
	run.RunData().Checkpoint = checkpoint
	d.storeMap[runID] = run
}

func (d *MemoryStore) AddToInnerRunIDSet(runID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.innerIDs[runID] = struct{}{}
}

func (d *MemoryStore) RemoveFromInnerRunIDSet(runID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.innerIDs, runID)
}

func (d *MemoryStore) ExistInInnerRunIDSet(runID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.innerIDs[runID]
	return ok
}
