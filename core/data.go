package core

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-openapi/strfmt"
	jsoniter "github.com/json-iterator/go"
	"github.com/mohae/deepcopy"
	"github.com/tidwall/pretty"
	"go.uber.org/zap"
)

type Status int // Status of the run as seen by callers; not every transition is visible outside the engine.

// CheckpointRaw is a serialized walker-ensemble snapshot. The engine treats
// it as opaque JSON; only the driver knows its layout.
type CheckpointRaw json.RawMessage

type EnergyTrace []StepRecord

var jsonIter = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	SUBMITTED Status = iota // In the dispatch queue, not yet picked up.
	READY                   // Accepted but never stepped. All fresh runs start here.
	RUNNING                 // The propagation loop is advancing the ensemble.
	SUCCEEDED               // Finished successfully.
	FAILED                  // Finished with failure.
	CANCELLED               // Finished with cancellation.
)

func (s Status) String() string {
	switch s {
	case SUBMITTED:
		return "submitted"
	case READY:
		return "ready"
	case RUNNING:
		return "running"
	case SUCCEEDED:
		return "succeeded"
	case FAILED:
		return "failed"
	case CANCELLED:
		return "cancelled"
	default:
		return "unknown"
	}
}

func ToStatus(s string) (Status, error) {
	switch s {
	case "submitted":
		return SUBMITTED, nil
	case "ready":
		return READY, nil
	case "running":
		return RUNNING, nil
	case "succeeded":
		return SUCCEEDED, nil
	case "failed":
		return FAILED, nil
	case "cancelled":
		return CANCELLED, nil
	default:
		return 0, fmt.Errorf("unknown status: %s", s)
	}
}

// StepRecord is one row of the energy trace, appended after every
// propagation step.
type StepRecord struct {
	Step        int     `json:"step"`
	Energy      float64 `json:"energy"`
	TotalWeight float64 `json:"total_weight"`
	Population  int     `json:"population"`
	Evicted     int     `json:"evicted"`
	Branched    int     `json:"branched"`
	Quantum     bool    `json:"quantum"` // energy came from the circuit estimator
}

func (e EnergyTrace) String() string {
	st, err := jsonIter.Marshal(e)
	if err != nil {
		zap.L().Error("Failed to marshal core.EnergyTrace")
		return ""
	}
	return string(st)
}

func (c CheckpointRaw) String() string {
	st, err := jsonIter.Marshal(c)
	if err != nil {
		zap.L().Error("Failed to marshal core.CheckpointRaw")
		return ""
	}
	return string(st)
}

type Result struct {
	Energy        float64       `json:"energy"`
	Stds          float64       `json:"stds"`
	Trace         EnergyTrace   `json:"trace"`
	Message       string        `json:"message"`
	ExecutionTime time.Duration `json:"execution_time"`
}

func NewResult() *Result {
	return &Result{
		Trace: EnergyTrace{},
	}
}

func (r *Result) ToString() string {
	st, err := jsonIter.Marshal(r)
	if err != nil {
		zap.L().Error("Failed to marshal core.Result")
		return ""
	}
	st = pretty.Pretty(st)
	return string(st)
}

// RunParams holds the caller-supplied knobs of one propagation run.
type RunParams struct {
	Timestep           float64   `json:"timestep"`
	NumSteps           int       `json:"num_steps"`
	NumWalkers         int       `json:"num_walkers"`
	Seed               int64     `json:"seed"`
	CheckpointInterval int       `json:"checkpoint_interval"`        // steps between estimator checkpoints, 0 disables
	CheckpointTimes    []float64 `json:"checkpoint_times,omitempty"` // simulated times (4-decimal grid) overriding the stride
	DisableBranching   bool      `json:"disable_branching"`
	Estimator          string    `json:"estimator"` // empty means classical contraction only
	UseDefault         bool      `json:"-"`
}

func UnmarshalToRunParams(paramsJson string) RunParams {
	var p RunParams
	err := jsonIter.Unmarshal([]byte(paramsJson), &p)
	if err != nil {
		zap.L().Error(fmt.Sprintf("failed to unmarshal run params from :%s/reason:%s",
			paramsJson, err))
	}
	return p
}

type RunData struct {
	ID         string
	Status     Status
	Params     *RunParams
	Result     *Result
	RunType    string
	Created    strfmt.DateTime
	Ended      strfmt.DateTime
	Info       string
	Checkpoint CheckpointRaw
}

func NewRunData() *RunData {
	return &RunData{
		Result:  NewResult(),
		Created: strfmt.DateTime(time.Now()),
	}
}

func (rd *RunData) Clone() *RunData {
	c := deepcopy.Copy(rd).(*RunData)
	c.Created = *rd.Created.DeepCopy()
	c.Ended = *rd.Ended.DeepCopy()
	c.Checkpoint = CheckpointRaw(append(json.RawMessage(nil), rd.Checkpoint...))
	return c
}

func CloneRunData(i *RunData) *RunData {
	o := NewRunData()
	o.ID = i.ID
	o.Status = i.Status
	if i.Params != nil {
		p := *i.Params
		o.Params = &p
	}
	o.Result.Energy = i.Result.Energy
	o.Result.Stds = i.Result.Stds
	o.Result.Trace = append(EnergyTrace{}, i.Result.Trace...)
	o.Result.Message = i.Result.Message
	o.Result.ExecutionTime = i.Result.ExecutionTime
	o.RunType = i.RunType
	o.Created = i.Created
	o.Ended = i.Ended
	o.Info = i.Info
	o.Checkpoint = CheckpointRaw(append(json.RawMessage(nil), i.Checkpoint...))
	return o
}
