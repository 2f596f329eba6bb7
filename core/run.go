package core

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/go-openapi/strfmt"
	"go.uber.org/zap"
)

var ErrorRunIDConflict = errors.New("runID is already used")
var runManager *RunManager

const NORMAL_RUN = "normal"

type Run interface {
	// Run Control
	New(*RunData, *RunContext) Run
	PreProcess()
	Process()
	PostProcess()
	IsFinished() bool

	// Data Access
	RunData() *RunData // Get mutable RunData
	RunType() string
	RunContext() *RunContext
	Clone() Run
}

type RunContext struct {
	*Channels
}

func NewRunContext() (*RunContext, error) {
	s := GetSystemComponents()
	if s == nil {
		return nil, fmt.Errorf("system components is not initialized")
	}
	c := s.Channels
	if c == nil {
		return nil, fmt.Errorf("channels is not initialized")
	}
	return &RunContext{
		Channels: GetSystemComponents().Channels,
	}, nil
}

type RunParam struct {
	RunID   string
	Params  *RunParams
	RunType string
}

// NormalRun is the plain phaseless propagation run. Pre-processing fills
// defaulted parameters, processing hands the run to the driver.
type NormalRun struct {
	runData    *RunData
	runContext *RunContext
}

func (r *NormalRun) New(rd *RunData, rc *RunContext) Run {
	return &NormalRun{
		runData:    rd,
		runContext: rc,
	}
}

func (r *NormalRun) PreProcess() {
	if err := r.preProcessImpl(); err != nil {
		zap.L().Error(fmt.Sprintf("failed to pre-process a run(%s). Reason:%s",
			r.RunData().ID, err.Error()))
		SetFailureWithError(r, err)
		return
	}
	return
}

func (r *NormalRun) preProcessImpl() (err error) {
	err = nil
	rd := r.RunData()
	if rd.Params == nil {
		rd.Params = DEFAULT_RUN_PARAMS()
		zap.L().Debug(fmt.Sprintf("run(%s) uses default params", rd.ID))
	}
	container := GetSystemComponents().Container
	err = container.Invoke(
		func(d DriverManager) error {
			return d.Validate(rd.Params)
		})
	if err != nil {
		zap.L().Error(fmt.Sprintf("failed to validate a run(%s). Reason:%s", rd.ID, err.Error()))
		return
	}
	return
}

func (r *NormalRun) Process() {
	c := GetSystemComponents().Container
	err := c.Invoke(
		func(d DriverManager) error {
			return d.Execute(r)
		})
	if err != nil {
		zap.L().Error(fmt.Sprintf("failed to execute a run(%s). Reason:%s", r.RunData().ID, err.Error()))
		r.RunData().Status = FAILED
	}
	zap.L().Debug(fmt.Sprintf("finished to process a run(%s)/status:%s", r.RunData().ID, r.RunData().Status))
}

func (r *NormalRun) PostProcess() {
	return
}

func (r *NormalRun) IsFinished() bool {
	return r.RunData().Status == SUCCEEDED || r.RunData().Status == FAILED
}

func (r *NormalRun) RunData() *RunData {
	return r.runData
}

func (r *NormalRun) RunType() string {
	return NORMAL_RUN
}

func (r *NormalRun) RunContext() *RunContext {
	return r.runContext
}

func (r *NormalRun) UpdateRunData(rd *RunData) {
	r.runData = rd
}

func (r *NormalRun) Clone() Run {
	cloned := &NormalRun{
		runData:    r.runData.Clone(),
		runContext: r.runContext,
	}
	return cloned
}

// UnknownRun carries a run whose type no registered implementation claims.
type UnknownRun struct {
	runData    *RunData
	runContext *RunContext
}

func (r *UnknownRun) New(rd *RunData, rc *RunContext) Run {
	return &UnknownRun{
		runData:    rd,
		runContext: rc,
	}
}

func (r *UnknownRun) PreProcess() {
	return
}

func (r *UnknownRun) Process() {
	return
}

func (r *UnknownRun) PostProcess() {
	return
}

func (r *UnknownRun) IsFinished() bool {
	return r.RunData().Status == SUCCEEDED || r.RunData().Status == FAILED
}

func (r *UnknownRun) RunData() *RunData {
	return r.runData
}

func (r *UnknownRun) RunType() string {
	// return unknown run type itself
	return r.runData.RunType
}

func (r *UnknownRun) RunContext() *RunContext {
	return r.runContext
}

func (r *UnknownRun) Clone() Run {
	cloned := &UnknownRun{
		runData:    r.runData.Clone(),
		runContext: r.runContext,
	}
	return cloned
}

func GetRun(id string) (run Run) {
	run = nil
	c := GetSystemComponents().Container
	err := c.Invoke(
		func(s StoreManager) error {
			var getErr error
			run, getErr = s.Get(id)
			return getErr
		})
	if err != nil {
		zap.L().Info(fmt.Sprintf("failed to find a run(%s)", id))
		return nil
	}
	return run
}

func DeleteRun(id string) bool {
	c := GetSystemComponents().Container
	err := c.Invoke(
		func(s StoreManager) error {
			return s.Delete(id)
		})
	if err != nil {
		zap.L().Info(fmt.Sprintf("failed to delete a run(%s)", id))
		return false
	}
	return true
}

// factory pattern
type RunManager struct {
	acceptableRuns []Run //empty runs
}

func (m *RunManager) RegisterRun(runs ...Run) error {
	for _, run := range runs {
		// check if run is already registered
		for _, t := range m.acceptableRuns {
			if reflect.TypeOf(t) == reflect.TypeOf(run) {
				return fmt.Errorf("run:%s is already registered", run.RunType())
			}

		}
		zap.L().Debug(fmt.Sprintf("registering run type %s", run.RunType()))
		m.acceptableRuns = append(m.acceptableRuns, run)
	}
	return nil
}

func (m *RunManager) AcceptableRunTypes() []string {
	types := []string{}
	for _, run := range m.acceptableRuns {
		types = append(types, run.RunType())
	}
	return types
}

func (m *RunManager) NewRunWithValidation(param *RunParam, rc *RunContext) (Run, error) {
	if param.RunType == "" { // default run type
		param.RunType = NORMAL_RUN
	}
	if param.Params == nil {
		param.Params = DEFAULT_RUN_PARAMS()
	}
	if err := validateRunParam(param); err != nil {
		zap.L().Info(fmt.Sprintf("failed to validate run param. Reason:%s", err.Error()))
		return nil, err
	}
	return m.NewRun(param, rc)
}

func (m *RunManager) NewRun(param *RunParam, rc *RunContext) (Run, error) {
	rd := NewRunData()
	rd.ID = param.RunID
	rd.Params = param.Params
	rd.RunType = param.RunType
	return m.NewRunFromRunData(rd, rc)
}

func (m *RunManager) NewRunFromRunDataWithValidation(rd *RunData, rc *RunContext) (Run, error) {
	if rd.RunType == "" { // default run type
		rd.RunType = NORMAL_RUN
	}
	p := &RunParam{
		RunID:   rd.ID,
		Params:  rd.Params,
		RunType: rd.RunType,
	}
	if err := validateRunParam(p); err != nil {
		zap.L().Info(fmt.Sprintf("failed to validate run data. Reason:%s", err.Error()))
		return nil, err
	}
	return m.NewRunFromRunData(rd, rc)
}

func (m *RunManager) NewRunFromRunData(rd *RunData, rc *RunContext) (Run, error) {
	if rd.RunType == "" { // default run type
		rd.RunType = NORMAL_RUN
	}
	zap.L().Debug(fmt.Sprintf("creating a run from run data. Run ID:%s, Run Type:%s", rd.ID, rd.RunType))
	for _, r := range m.acceptableRuns {
		zap.L().Debug(fmt.Sprintf("checking run type %s", r.RunType()))
		if r.RunType() == rd.RunType {
			// create a new run instance
			t := reflect.TypeOf(r)
			newInstance := reflect.New(t).Elem().Interface()
			run := newInstance.(Run).New(rd, rc)
			return run, nil
		}
	}
	return nil, fmt.Errorf("run type %s is not registered", rd.RunType)
}

func validateRunParam(p *RunParam) (err error) {
	err = nil
	if p.RunID == "" {
		return fmt.Errorf("runID is empty")
	}

	if p.RunType == NORMAL_RUN {
		if p.Params.NumWalkers <= 0 {
			msg := fmt.Sprintf("walkers(%d) must be greater than 0", p.Params.NumWalkers)
			zap.L().Info(msg + fmt.Sprintf("/runID:%s", p.RunID))
			return fmt.Errorf(msg)
		}
		maxWalkers := GetSystemComponents().GetEngineInfo().MaxWalkers
		if p.Params.NumWalkers > maxWalkers {
			msg := fmt.Sprintf("walkers(%d) is over the limit(%d)",
				p.Params.NumWalkers, maxWalkers)
			zap.L().Info(msg + fmt.Sprintf("/runID:%s", p.RunID))
			return fmt.Errorf(msg)
		}
		if p.Params.NumSteps <= 0 {
			msg := fmt.Sprintf("steps(%d) must be greater than 0", p.Params.NumSteps)
			zap.L().Info(msg + fmt.Sprintf("/runID:%s", p.RunID))
			return fmt.Errorf(msg)
		}
		if p.Params.Timestep <= 0 {
			msg := fmt.Sprintf("timestep(%g) must be greater than 0", p.Params.Timestep)
			zap.L().Info(msg + fmt.Sprintf("/runID:%s", p.RunID))
			return fmt.Errorf(msg)
		}
	}
	container := GetSystemComponents().Container
	err = container.Invoke(
		func(e EnergyEstimator) error {
			if p.Params.Estimator == "" {
				return nil // classical contraction only
			}
			if e.Accepts(p.Params.Estimator) {
				return nil
			}
			return fmt.Errorf("estimator %s is not acceptable", p.Params.Estimator)
		})
	if err != nil {
		zap.L().Info(fmt.Sprintf("failed to validate estimator/RunID:%s/reason:%s", p.RunID, err.Error()))
		return err
	}
	return
}

func NewRunManager(runs ...Run) (*RunManager, error) {
	rm := &RunManager{}
	for _, run := range runs {
		zap.L().Debug(fmt.Sprintf("registering run type %s", run.RunType()))
		err := rm.RegisterRun(run)
		if err != nil {
			return nil, err
		}
	}
	runManager = rm
	return rm, nil
}

func GetRunManager() *RunManager {
	return runManager
}

func SetFailureWithError(r Run, err error) (msg string) {
	rd := r.RunData()
	return SetFailureWithErrorToRunData(rd, err)
}

func SetFailureWithErrorToRunData(rd *RunData, err error) (msg string) {
	msg = err.Error()
	rd.Result.Message = msg
	rd.Status = FAILED
	rd.Ended = strfmt.DateTime(time.Now())
	return msg
}
