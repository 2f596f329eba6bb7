package spool

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/phaseless-team/afqmc-engine/core"
)

var jsonIter = jsoniter.ConfigCompatibleWithStandardLibrary

// runRequest is the on-disk shape of a spooled run request. ID and RunType
// are optional; Params follows the run-parameter JSON layout.
type runRequest struct {
	ID      string          `json:"id,omitempty"`
	RunType string          `json:"run_type,omitempty"`
	Params  *core.RunParams `json:"params"`
}

type dirClient struct {
	dir   string
	count int
}

func newDirClient(dir string, count int) (*dirClient, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to prepare spool dir %s/reason:%w", dir, err)
	}
	return &dirClient{dir: dir, count: count}, nil
}

// request scans the spool directory for request files in name order and
// turns up to count of them into runs. Consumed files are renamed with an
// .accepted suffix, malformed ones with .rejected, so neither is re-read.
func (c *dirClient) request() ([]core.Run, error) {
	paths, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan spool dir %s/reason:%w", c.dir, err)
	}
	sort.Strings(paths)
	if len(paths) > c.count {
		paths = paths[:c.count]
	}
	runs := make([]core.Run, 0, len(paths))
	for _, path := range paths {
		run, err := c.consume(path)
		if err != nil {
			zap.L().Info(fmt.Sprintf("rejected spool file %s/reason:%s", path, err))
			c.park(path, ".rejected")
			continue
		}
		c.park(path, ".accepted")
		runs = append(runs, run)
	}
	return runs, nil
}

func (c *dirClient) consume(path string) (core.Run, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var req runRequest
	if err := jsonIter.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run request:%w", err)
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	rc, err := core.NewRunContext()
	if err != nil {
		return nil, err
	}
	run, err := core.GetRunManager().NewRunWithValidation(
		&core.RunParam{
			RunID:   req.ID,
			Params:  req.Params,
			RunType: req.RunType,
		}, rc)
	if err != nil {
		return nil, err
	}
	run.RunData().Status = core.READY
	return run, nil
}

func (c *dirClient) park(path, suffix string) {
	parked := strings.TrimSuffix(path, ".json") + suffix
	if err := os.Rename(path, parked); err != nil {
		zap.L().Error(fmt.Sprintf("failed to park spool file %s/reason:%s", path, err))
	}
}
