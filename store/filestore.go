// Package store persists run records as per-run JSON files so that an
// engine restart or crash keeps the accumulated traces and the latest
// walker-ensemble checkpoint.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-faster/jx"
	"github.com/go-openapi/strfmt"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/phaseless-team/afqmc-engine/common"
	"github.com/phaseless-team/afqmc-engine/core"
)

var jsonIter = jsoniter.ConfigCompatibleWithStandardLibrary

// runRecord is the on-disk layout of one run.
type runRecord struct {
	ID         string          `json:"id"`
	Status     string          `json:"status"`
	RunType    string          `json:"run_type"`
	Params     *core.RunParams `json:"params"`
	Result     *core.Result    `json:"result"`
	Created    strfmt.DateTime `json:"created"`
	Ended      strfmt.DateTime `json:"ended"`
	Info       string          `json:"info,omitempty"`
	Checkpoint jx.Raw          `json:"checkpoint,omitempty"`
}

type FileStore struct {
	dir       string
	storeChan core.StoreChan
	innerIDs  map[string]struct{}
	mu        sync.RWMutex
}

func (f *FileStore) Setup(sc core.StoreChan, c *core.Conf) error {
	f.dir = c.CheckpointDir
	f.innerIDs = make(map[string]struct{})
	f.storeChan = sc
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("failed to make the checkpoint dir %s/reason:%s", f.dir, err)
	}
	if err := common.IsDirWritable(f.dir); err != nil {
		return err
	}
	go func() {
		for {
			run := <-f.storeChan
			if run == nil { //when storeChan is closed
				return
			}
			zap.L().Debug(fmt.Sprintf("[FileStore] Received %s", run.RunData().ID))
			if err := f.Update(run); err != nil {
				zap.L().Error(fmt.Sprintf("failed to update a run(%s). Reason:%s",
					run.RunData().ID, err.Error()))
			}
		}
	}()
	return nil
}

func (f *FileStore) path(runID string) string {
	return filepath.Join(f.dir, runID+".json")
}

func (f *FileStore) Insert(r core.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := os.Stat(f.path(r.RunData().ID)); err == nil {
		return core.ErrorRunIDConflict
	}
	return f.write(r.RunData())
}

func (f *FileStore) Get(runID string) (core.Run, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	raw, err := os.ReadFile(f.path(runID))
	if err != nil {
		findErr := fmt.Errorf("not found %s", runID)
		zap.L().Info("[FileStore]", zap.Field(zap.Error(findErr)))
		return &core.NormalRun{}, findErr
	}
	var rec runRecord
	if err := jsonIter.Unmarshal(raw, &rec); err != nil {
		return &core.NormalRun{}, fmt.Errorf("broken record of run(%s)/reason:%s", runID, err)
	}
	rd, err := rec.toRunData()
	if err != nil {
		return &core.NormalRun{}, err
	}
	rm := core.GetRunManager()
	if rm == nil {
		return &core.NormalRun{}, fmt.Errorf("run manager is not initialized")
	}
	rc, err := core.NewRunContext()
	if err != nil {
		return &core.NormalRun{}, err
	}
	return rm.NewRunFromRunData(rd, rc)
}

func (f *FileStore) Update(r core.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write(r.RunData())
}

func (f *FileStore) Delete(runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path(runID)); err != nil {
		findErr := fmt.Errorf("failed to find %s", runID)
		zap.L().Info("[FileStore]", zap.Field(zap.Error(findErr)))
		return findErr
	}
	zap.L().Info(fmt.Sprintf("[FileStore] deleted %s from store", runID))
	return nil
}

// write persists one run record. The checkpoint blob is validated before it
// is embedded; a corrupt blob costs the snapshot, not the record.
func (f *FileStore) write(rd *core.RunData) error {
	rec := runRecord{
		ID:      rd.ID,
		Status:  rd.Status.String(),
		RunType: rd.RunType,
		Params:  rd.Params,
		Result:  rd.Result,
		Created: rd.Created,
		Ended:   rd.Ended,
		Info:    rd.Info,
	}
	if len(rd.Checkpoint) != 0 {
		if jx.Valid(rd.Checkpoint) {
			rec.Checkpoint = jx.Raw(rd.Checkpoint)
		} else {
			zap.L().Warn(fmt.Sprintf("dropping invalid checkpoint blob of run(%s)", rd.ID))
		}
	}
	raw, err := jsonIter.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("failed to marshal run(%s)/reason:%s", rd.ID, err)
	}
	tmp := f.path(rd.ID) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("failed to write run(%s)/reason:%s", rd.ID, err)
	}
	return os.Rename(tmp, f.path(rd.ID))
}

func (rec *runRecord) toRunData() (*core.RunData, error) {
	status, err := core.ToStatus(rec.Status)
	if err != nil {
		return nil, fmt.Errorf("record of run(%s) carries an unknown status/reason:%s", rec.ID, err)
	}
	rd := core.NewRunData()
	rd.ID = rec.ID
	rd.Status = status
	rd.RunType = rec.RunType
	rd.Params = rec.Params
	if rec.Result != nil {
		rd.Result = rec.Result
	}
	rd.Created = rec.Created
	rd.Ended = rec.Ended
	rd.Info = rec.Info
	rd.Checkpoint = core.CheckpointRaw(rec.Checkpoint)
	return rd, nil
}

func (f *FileStore) AddToInnerRunIDSet(runID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.innerIDs[runID] = struct{}{}
}

func (f *FileStore) RemoveFromInnerRunIDSet(runID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.innerIDs, runID)
}

func (f *FileStore) ExistInInnerRunIDSet(runID string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.innerIDs[runID]
	return ok
}
