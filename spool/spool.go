// Package spool feeds the engine with run requests dropped as JSON files
// into a watched directory. A periodic task scans the directory, admits
// requests while the dispatch queue has room, and backs off to an idle
// period when nothing arrives.
package spool

import (
	"fmt"
	"reflect"
	"time"

	"go.uber.org/zap"

	"github.com/phaseless-team/afqmc-engine/core"
)

type state int

const SpoolTaskName = "spool"

const (
	POLLING state = iota
	SUB_IDLE
	IDLE
)

const (
	DEFAULT_DIR           = "./shares/spool"
	DEFAULT_COUNT         = 10
	DEFAULT_NORMAL_PERIOD = time.Duration(2) * time.Second
	DEFAULT_IDLE_PERIOD   = time.Duration(10) * time.Second
	DEFAULT_MAX_RETRY     = 3
)

func (s state) String() string {
	switch s {
	case POLLING:
		return "POLLING"
	case SUB_IDLE:
		return "SUB_IDLE"
	case IDLE:
		return "IDLE"
	default:
		return "UNKNOWN"
	}
}

type Spool struct {
	Dir          string        `toml:"dir"`
	Count        int           `toml:"count"`
	NormalPeriod time.Duration `toml:"normal_period"`
	IdlePeriod   time.Duration `toml:"idle_period"`
	MaxRetry     int           `toml:"max_retry"`

	spoolClient

	currentPeriod time.Duration
	noRunsCount   int
	state         state

	sysCom *core.SystemComponents
}

func (p *Spool) GetEmptyParams() interface{} {
	return &Spool{}
}

func (p *Spool) SetParams(params interface{}) error {
	if params == nil {
		msg := "no params for spool"
		zap.L().Debug(msg)
		return nil
	}
	pp, ok := params.(map[string]interface{})
	if !ok {
		msg := fmt.Errorf("failed to set params for spool/params: %s", params)
		zap.L().Error(msg.Error())
		return msg
	}
	zap.L().Debug(fmt.Sprintf("Set params for spool: %v", pp))
	setField[string]("dir", &p.Dir, pp, DEFAULT_DIR)
	setField[int]("count", &p.Count, pp, DEFAULT_COUNT)
	setField[int]("max_retry", &p.MaxRetry, pp, DEFAULT_MAX_RETRY)

	setDurationField("normal_period", &p.NormalPeriod, pp, DEFAULT_NORMAL_PERIOD)
	setDurationField("idle_period", &p.IdlePeriod, pp, DEFAULT_IDLE_PERIOD)

	return nil
}

func setField[T string | int | bool](key string, target *T, pp map[string]interface{}, defaultVal T) {
	if v, ok := pp[key]; ok && !reflect.ValueOf(v).IsZero() {
		*target = v.(T)
		return
	}
	zap.L().Debug(fmt.Sprintf("Set default value for %s: %v", key, defaultVal))
	*target = defaultVal
}

func setDurationField(key string, target *time.Duration, pp map[string]interface{}, defaultVal time.Duration) {
	if v, ok := pp[key]; ok && !reflect.ValueOf(v).IsZero() {
		dur, err := time.ParseDuration(v.(string))
		if err != nil {
			zap.L().Error(fmt.Sprintf("failed to parse duration for %s/reason:%s", key, err))
		}
		*target = dur
		return
	}
	zap.L().Debug(fmt.Sprintf("Set default value for %s: %v", key, defaultVal))
	*target = defaultVal
}

func (p *Spool) RequirePeriodUpdate() (bool, time.Duration) {
	return true, p.currentPeriod
}

type spoolClient interface {
	request() ([]core.Run, error)
}

func (p *Spool) Setup() error {
	client, err := newDirClient(p.Dir, p.Count)
	if err != nil {
		zap.L().Error(fmt.Sprintf("failed to set spool dir client/reason:%s", err))
		return err
	}
	zap.L().Info(fmt.Sprintf("SpoolDir:%s", p.Dir))
	p.spoolClient = client
	p.currentPeriod = p.NormalPeriod
	p.noRunsCount = 0
	p.state = POLLING
	p.sysCom = core.GetSystemComponents()
	return nil
}

func (p *Spool) Task() {
	zap.L().Debug("Spool is getting runs")
	runsNum, err := p.getRuns()
	if err != nil || runsNum == 0 {
		if err != nil {
			zap.L().Info(fmt.Sprintf("Failed to get runs. NoRunsCount:%d, Reason:%s",
				p.noRunsCount, err))
		} else {
			zap.L().Debug(fmt.Sprintf("Get no runs. NoRunsCount:%d", p.noRunsCount))
		}
		switch p.state {
		case POLLING:
			p.noRunsCount = 1
			p.updateState(SUB_IDLE)
			zap.L().Debug(fmt.Sprintf("Transition to sub idle mode. Retry after %s", p.NormalPeriod))
			return
		case SUB_IDLE:
			p.noRunsCount++
			if p.noRunsCount < p.MaxRetry {
				zap.L().Debug(fmt.Sprintf("Retry after %s", p.NormalPeriod))
			} else {
				zap.L().Info("Reached max retry. Transition to idle mode")
				p.noRunsCount = 0
				p.updateState(IDLE)
				p.currentPeriod = p.IdlePeriod
			}
		case IDLE:
			zap.L().Debug(fmt.Sprintf("Already in idle mode. Retry after idle period %s", p.IdlePeriod))
		default:
			zap.L().Error(fmt.Sprintf("Unknown state %d", int(p.state)))
		}
	} else { // got runs
		switch p.state {
		case POLLING:
			zap.L().Debug("keep polling")
		case SUB_IDLE:
			zap.L().Info("Transition to polling mode from sub_idle state")
			p.updateState(POLLING)
			p.noRunsCount = 0
		case IDLE:
			zap.L().Info("Transition to polling mode from idle state")
			p.currentPeriod = p.NormalPeriod
			p.updateState(POLLING)
			p.noRunsCount = 0
		default:
			zap.L().Error(fmt.Sprintf("Unknown state %d", int(p.state)))
		}
	}
}

func (p *Spool) Cleanup() {
	zap.L().Info("Spool is cleaning up")
}

func (p *Spool) request() ([]core.Run, error) {
	return p.spoolClient.request()
}

func (p *Spool) getRuns() (int, error) {
	if err := passSpoolCondition(); err != nil {
		zap.L().Info(fmt.Sprintf("not get runs. reason:%s", err))
		return 0, err
	}
	runs, err := p.request()
	if err != nil {
		zap.L().Error(fmt.Sprintf("Failed to get runs. Reason:%s", err))
		return 0, err
	}
	zap.L().Debug(fmt.Sprintf("get %d runs", len(runs)))
	handlingRunsNum := 0
	for _, run := range runs {
		rd := run.RunData()
		zap.L().Debug(fmt.Sprintf("Handling a run. Run ID:%s created:%s", rd.ID, rd.Created))
		p.sysCom.Invoke(
			func(s core.Scheduler) error {
				s.HandleRun(run)
				return nil
			})
		handlingRunsNum++
	}
	return handlingRunsNum, nil
}

func (p *Spool) updateState(newState state) {
	p.state = newState
}

func passSpoolCondition() error {
	s := core.GetSystemComponents()
	if s.IsQueueOverRefillThreshold() {
		msg := fmt.Sprintf("queue size is over refill-threshold. current queue size:%d",
			s.GetCurrentQueueSize())
		return fmt.Errorf(msg)
	} else {
		zap.L().Debug(fmt.Sprintf("queue is under refill-threshold. current queue size:%d",
			s.GetCurrentQueueSize()))
	}
	ei := s.GetEngineInfo()
	if ei.Status == core.Available {
		zap.L().Debug("engine is available")
	} else {
		msg := fmt.Sprintf("engine is not available. current status:%s", ei.Status)
		return fmt.Errorf(msg)
	}
	return nil
}
