package core

import (
	"context"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/oklog/run"
	"go.uber.org/zap"

	"github.com/phaseless-team/afqmc-engine/common"
)

var groupContext *GroupContext

const (
	PERIODIC_TASKS = "periodic_tasks"
	SERVICE_LOOPS  = "service_loops"
)

type PeriodicTaskImplMap map[string]PeriodicTaskImpl
type ServiceLoopImplMap map[string]ServiceLoopImpl

type PeriodicTaskMap map[string]*PeriodicTask
type ServiceLoopMap map[string]*ServiceLoop

type ImplMaps struct {
	PeriodicTaskImplMap PeriodicTaskImplMap
	ServiceLoopImplMap  ServiceLoopImplMap
}

type Runner interface {
	*PeriodicTask | *ServiceLoop
	GetParams() interface{}
}

type RunnerImpl interface {
	GetEmptyParams() interface{}
	SetParams(interface{}) error
	Setup() error
}

type GroupContext struct {
	*run.Group
	context.Context

	settingsPath string

	RunGroupMaps *RunGroupMaps `toml:"run_group,omitempty"`
}

type RungroupSetting struct {
	Entries map[string]interface{} `toml:"run_group,omitempty"`
}

func NewGroupSettings() *RungroupSetting {
	return &RungroupSetting{
		Entries: make(map[string]interface{}),
	}
}

type RunGroupMaps struct {
	PeriodicTasks PeriodicTaskMap `toml:"periodic_tasks"`
	ServiceLoops  ServiceLoopMap  `toml:"service_loops"`
}

func parseRunGroupSettings(settings map[string]interface{}, im *ImplMaps) (*RunGroupMaps, error) {
	rgm := &RunGroupMaps{
		PeriodicTasks: make(PeriodicTaskMap),
		ServiceLoops:  make(ServiceLoopMap),
	}
	for group, value := range settings {
		switch group {
		case PERIODIC_TASKS:
			zap.L().Debug(fmt.Sprintf("PeriodicTasks: %v", value))
			ptm, err := parseRunnerSettings[*PeriodicTask, PeriodicTaskImpl](value.(map[string]interface{}), im.PeriodicTaskImplMap)
			if err != nil {
				zap.L().Error(fmt.Sprintf("Failed to parse periodic tasks settings. Reason:%s", err))
				return nil, err
			}
			rgm.PeriodicTasks = ptm
		case SERVICE_LOOPS:
			zap.L().Debug(fmt.Sprintf("ServiceLoops: %v", value))
			slm, err := parseRunnerSettings[*ServiceLoop, ServiceLoopImpl](value.(map[string]interface{}), im.ServiceLoopImplMap)
			if err != nil {
				zap.L().Error(fmt.Sprintf("Failed to parse service loops settings. Reason:%s", err))
				return nil, err
			}
			rgm.ServiceLoops = slm
		default:
			msg := fmt.Sprintf("Unknown run group type. Group:%s, Value:%v", group, value)
			zap.L().Error(msg)
			return nil, fmt.Errorf(msg)
		}
	}
	zap.L().Debug("Successfully parsed run group settings.", zap.Any("RunGroupMaps", rgm))
	return rgm, nil
}

func parseRunnerSettings[R Runner, I RunnerImpl](settings map[string]interface{}, implMap map[string]I) (map[string]R, error) {
	runnerMap := make(map[string]R)
	for k, v := range implMap {
		zap.L().Debug(fmt.Sprintf("implMap/key:%s/value:%v", k, v))
	}
	for runnerName := range settings { // value is not used for now
		impl, ok := implMap[runnerName]
		if !ok {
			msg := fmt.Sprintf("failed to find %s implementation from RunnerMap %v", runnerName, implMap)
			zap.L().Error(msg)
			return nil, fmt.Errorf(msg)
		}
		runner, err := newRunner[R, I](impl)
		if err != nil {
			msg := fmt.Sprintf("failed to set implementation to runnerName:%v/impl:%v/reason:%v", runnerName, impl, err.Error())
			zap.L().Error(msg)
			return nil, fmt.Errorf(msg)
		}
		runnerMap[runnerName] = runner
	}
	return runnerMap, nil
}

func newRunner[R Runner, I RunnerImpl](runnerImpl I) (runner R, err error) {
	err = nil
	switch any(runner).(type) {
	case *PeriodicTask:
		i, ok := any(runnerImpl).(PeriodicTaskImpl)
		if !ok {
			err = fmt.Errorf("failed to cast to PeriodicTaskImpl/runner:%v", runner)
			return
		}
		runner = any(&PeriodicTask{PeriodicTaskImpl: i}).(R)
	case *ServiceLoop:
		i, ok := any(runnerImpl).(ServiceLoopImpl)
		if !ok {
			err = fmt.Errorf("failed to cast to ServiceLoopImpl/runner:%v", runner)
			return
		}
		runner = any(&ServiceLoop{ServiceLoopImpl: i}).(R)
	default:
		err = fmt.Errorf("unknown runner type:%v", runner)
		return
	}
	return
}

func NewGroupContext() *GroupContext {
	return &GroupContext{
		Group:   &run.Group{},
		Context: context.Background(),
		RunGroupMaps: &RunGroupMaps{
			PeriodicTasks: make(PeriodicTaskMap),
			ServiceLoops:  make(ServiceLoopMap),
		},
	}
}

func NewGroupContextWithSettingPath(settingsPath string, im *ImplMaps) (*GroupContext, error) {
	tomlString, err := common.ReadSettingsFile(settingsPath)
	if err != nil {
		zap.L().Error(fmt.Sprintf("failed to read settings file/reason:%s", err))
		return nil, err
	}
	// Decoding TOML to RunGroupMaps is a bit tricky.
	// 1. decode to Settings to get RunGroupSettings
	// It just decodes to setup RunGroupMaps
	s := NewGroupSettings()
	if metadata, err := toml.Decode(tomlString, s); err != nil {
		zap.L().Error(fmt.Sprintf("Failed to decode settings file. Reason:%s. Metadata:%v",
			err, metadata))
		return nil, err
	}
	zap.L().Debug("Successfully decoded TOML file to Settings.", zap.Any("Settings", s))
	runGroupMaps, err := parseRunGroupSettings(s.Entries, im)
	if err != nil {
		zap.L().Error(fmt.Sprintf("Failed to parse run group settings. Reason:%s", err))
		return nil, err
	}
	zap.L().Debug("Successfully parsed run group settings.", zap.Any("RunGroupMaps", runGroupMaps))
	// 2. decode to RunGroupMaps
	gc := &GroupContext{
		Group:        &run.Group{},
		Context:      context.Background(),
		settingsPath: settingsPath,
		RunGroupMaps: runGroupMaps,
	}
	// 3. store Impl to tmp map,
	// because we need to recover them after decoding to RunGroupMaps
	tmpPeriodicTaskImplMap := make(map[string]PeriodicTaskImpl)
	tmpServiceLoopImplMap := make(map[string]ServiceLoopImpl)
	for taskName, task := range gc.RunGroupMaps.PeriodicTasks {
		tmpPeriodicTaskImplMap[taskName] = task.PeriodicTaskImpl
	}
	for loopName, loop := range gc.RunGroupMaps.ServiceLoops {
		tmpServiceLoopImplMap[loopName] = loop.ServiceLoopImpl
	}
	// 4. decode to RunGroupMaps
	if metadata, err := toml.Decode(string(tomlString), gc); err != nil {
		zap.L().Error(fmt.Sprintf("Failed to decode settings file. Reason:%s. Metadata:%v",
			err, metadata))
		return nil, err
	}
	zap.L().Debug("Successfully decoded TOML file to RunGroupMaps.", zap.Any("RunGroupMaps", gc.RunGroupMaps))
	// 5. recover Impl
	for taskName, task := range gc.RunGroupMaps.PeriodicTasks {
		task.PeriodicTaskImpl = tmpPeriodicTaskImplMap[taskName]
	}
	for loopName, loop := range gc.RunGroupMaps.ServiceLoops {
		loop.ServiceLoopImpl = tmpServiceLoopImplMap[loopName]
	}
	zap.L().Debug("Successfully recovered PeriodicTask Impl and ServiceLoop Impl.",
		zap.Any("RunGroupMaps", gc.RunGroupMaps))
	// 6. set parameters to Impl
	if err := setParametersToImpl[*PeriodicTask](gc.RunGroupMaps.PeriodicTasks); err != nil {
		zap.L().Error(fmt.Sprintf("failed to set parameters to PeriodicTask Impl/reason:%s", err.Error()))
		return nil, err
	}
	if err := setParametersToImpl[*ServiceLoop](gc.RunGroupMaps.ServiceLoops); err != nil {
		zap.L().Error(fmt.Sprintf("failed to set parameters to ServiceLoop Impl/reason:%s", err.Error()))
		return nil, err
	}

	zap.L().Debug("Successfully set parameters to Impl.",
		zap.Any("RunGroupMaps", gc.RunGroupMaps))
	// 7. setup Impl and add to GroupContext
	if err := setupImplAndAddToGroupContext[*PeriodicTask](gc.RunGroupMaps.PeriodicTasks, gc.AddPeriodicTask); err != nil {
		zap.L().Error(fmt.Sprintf("failed to setup and add PeriodicTask/reason:%s", err.Error()))
		return nil, err
	}
	if err := setupImplAndAddToGroupContext[*ServiceLoop](gc.RunGroupMaps.ServiceLoops, gc.AddServiceLoop); err != nil {
		zap.L().Error(fmt.Sprintf("failed to setup and add ServiceLoop/reason:%s", err.Error()))
		return nil, err
	}

	zap.L().Info("Successfully initialized GroupContext. RunGroupMaps:", zap.Any("RunGroupMaps", gc.RunGroupMaps))
	return gc, nil
}

func setParametersToImpl[R Runner](runners map[string]R) error {
	for name, runner := range runners {
		zap.L().Debug(fmt.Sprintf("setting parameters to Impl/name:%s/runner%v", name, runner))
		if err := any(runner).(RunnerImpl).SetParams(runner.GetParams()); err != nil {
			zap.L().Error(fmt.Sprintf("failed to set parameters to Impl/name:%s/runner%v/reason:%s",
				name, runner, err.Error()))
			return err
		}
	}
	return nil
}

func setupImplAndAddToGroupContext[R Runner](
	runners map[string]R,
	addFunc func(R, string) error) error {
	for name, runner := range runners {
		if err := any(runner).(RunnerImpl).Setup(); err != nil {
			zap.L().Error(fmt.Sprintf("failed to setup/name:%s/reason:%s", name, err.Error()))
			return err
		}
		if err := addFunc(runner, name); err != nil {
			zap.L().Error(fmt.Sprintf("failed to add runner/name:%s/reason:%s", name, err))
			return err
		}
		zap.L().Info(fmt.Sprintf("successfully added runner/name:%s", name))
	}
	return nil
}

func GetGroupContext() *GroupContext {
	return groupContext
}

func SetGroupContext(gc *GroupContext) {
	groupContext = gc
}

type PeriodicTask struct {
	Period time.Duration `toml:"period"`
	Params interface{}   `toml:"params,omitempty"`
	PeriodicTaskImpl
}

func (t *PeriodicTask) GetParams() interface{} {
	return t.Params
}

type PeriodicTaskImpl interface {
	RunnerImpl
	RequirePeriodUpdate() (ok bool, duration time.Duration)
	Task()
	Cleanup()
}

type DefaultTaskImpl struct{}

func (v *DefaultTaskImpl) Setup() error {
	return nil
}

func (v *DefaultTaskImpl) GetEmptyParams() interface{} {
	return v
}

func (v *DefaultTaskImpl) SetParams(p interface{}) error {
	return nil
}

func (v *DefaultTaskImpl) RequirePeriodUpdate() (bool, time.Duration) {
	return false, 0
}

func (v *DefaultTaskImpl) Task() {}

func (v *DefaultTaskImpl) Cleanup() {}

func (gc *GroupContext) AddPeriodicTask(t *PeriodicTask, taskName string) error {
	ctx, cancel := context.WithCancel(gc.Context)
	lastPeriod := t.Period
	gc.Group.Add(
		func() error {
			ticker := time.NewTicker(t.Period)
			zap.L().Info(fmt.Sprintf("[PeriodicTask/%s/Start]", taskName))
			t.PeriodicTaskImpl.Task()
			for {
				select {
				case <-ctx.Done():
					zap.L().Info(fmt.Sprintf("[PeriodicTask/%s/TearDown]Cleaning up periodic task", taskName))
					ticker.Stop()
					t.PeriodicTaskImpl.Cleanup()
					zap.L().Info(fmt.Sprintf("[PeriodicTask/%s/TearDown]Cleaned up periodic task", taskName))
					return ctx.Err()
				case <-ticker.C:
					t.PeriodicTaskImpl.Task()
					ok, newPeriod := t.RequirePeriodUpdate()
					if ok && newPeriod != lastPeriod {
						zap.L().Info(fmt.Sprintf("[PeriodicTask/%s/ResetPeriod]Resetting periodic task. from %v to %v",
							taskName, lastPeriod, newPeriod))
						ticker.Reset(newPeriod)
						zap.L().Info(fmt.Sprintf("[PeriodicTask/%s/ResetPeriod]Reset periodic task. from %v to %v",
							taskName, lastPeriod, newPeriod))
						lastPeriod = newPeriod
					}
				}
			}
		},
		func(error) {
			zap.L().Info(fmt.Sprintf("[PeriodicTask/%s/TearDown]Cancelling periodic task", taskName))
			cancel()
			zap.L().Info(fmt.Sprintf("[PeriodicTask/%s/TearDown]Canceled periodic task", taskName))
		},
	)
	return nil
}

type ServiceLoop struct {
	Params interface{} `toml:"params,omitempty"`
	ServiceLoopImpl
}

func (s *ServiceLoop) GetParams() interface{} {
	return s.Params
}

func (s *ServiceLoop) SetImpl(impl interface{}) error {
	sli, ok := impl.(ServiceLoopImpl)
	if !ok {
		msg := fmt.Sprintf("Failed to cast to ServiceLoopImpl. Impl:%v", impl)
		zap.L().Error(msg)
		return fmt.Errorf(msg)
	}
	s.ServiceLoopImpl = sli
	return nil
}

type ServiceLoopImpl interface {
	RunnerImpl
	Start() error
	Cleanup()
	Handle(Run) error
}

func NewServiceLoop(impl ServiceLoopImpl) *ServiceLoop {
	return &ServiceLoop{
		Params:          impl.GetEmptyParams(),
		ServiceLoopImpl: impl,
	}
}

func (gc *GroupContext) AddServiceLoop(s *ServiceLoop, loopName string) error {
	ctx, cancel := context.WithCancel(gc.Context)
	gc.Group.Add(
		func() error {
			zap.L().Info(fmt.Sprintf("[ServiceLoop/%s/Start]", loopName))
			err := s.Start()
			if err != nil {
				zap.L().Error(fmt.Sprintf("[ServiceLoop/%s/Error]failed to start service loop/reason:%s",
					loopName, err))
				return err
			}
			zap.L().Info(fmt.Sprintf("[ServiceLoop/%s/Started]", loopName))
			<-ctx.Done()
			zap.L().Info(fmt.Sprintf("[ServiceLoop/%s/TearDown]cleaning up service loop",
				loopName))
			s.Cleanup()
			zap.L().Info(fmt.Sprintf("[ServiceLoop/%s/TearDown]cleaned up service loop",
				loopName))
			return nil
		},
		func(error) {
			zap.L().Info(fmt.Sprintf("[ServiceLoop/%s/TearDown]cancelling service loop",
				loopName))
			cancel()
			zap.L().Info(fmt.Sprintf("[ServiceLoop/%s/TearDown]canceled service loop",
				loopName))
		},
	)
	return nil
}
