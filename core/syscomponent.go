package core

import (
	"fmt"

	"github.com/go-faster/jx"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/phaseless-team/afqmc-engine/afqmc"
)

var (
	systemComponents     *SystemComponents
	defaultRunParamsJson map[string]jx.Raw
)

func init() {
	drp := DEFAULT_RUN_PARAMS()
	drpj := make(map[string]jx.Raw)
	drpj["timestep"] = jx.Raw(fmt.Sprintf("%g", drp.Timestep))
	drpj["num_steps"] = jx.Raw(fmt.Sprintf("%d", drp.NumSteps))
	drpj["num_walkers"] = jx.Raw(fmt.Sprintf("%d", drp.NumWalkers))
	defaultRunParamsJson = drpj
}

func DefaultRunParamsJson() map[string]jx.Raw {
	return defaultRunParamsJson
}

type StoreChan chan Run

type Channels struct {
	StoreChan
	// when more channel is needed, add here
	// would use map[string]chan Run
}

func NewChannels() *Channels {
	return &Channels{
		StoreChan: make(StoreChan),
	}
}

func (c *Channels) Close() {
	close(c.StoreChan)
}

func (c *Channels) Check() error {
	if c.StoreChan == nil {
		return fmt.Errorf("StoreChan is nil")
	}
	return nil
}

type EngineInfo struct {
	EngineName     string       `json:"engine_name"`
	ProviderName   string       `json:"provider_name"`
	Type           string       `json:"type"`
	Status         EngineStatus `json:"status"`
	MaxOrbitals    int          `json:"max_orbitals"`
	MaxWalkers     int          `json:"max_walkers"`
	EngineSpecJson string       `json:"engine_info"`
	BuiltAt        string       `json:"built_at"`
}

type EngineSpec struct {
	EngineID string        `json:"engine_id"`
	Backends []BackendSpec `json:"backends"`
}

type BackendSpec struct {
	Name      string `json:"name"`
	MaxQubits int    `json:"max_qubits"`
	Exact     bool   `json:"exact"`
}

type EngineStatus int

const (
	Available EngineStatus = iota
	Unavailable
	QueuePaused
)

func (es EngineStatus) String() string {
	switch es {
	case Available:
		return "Available"
	case Unavailable:
		return "Unavailable"
	case QueuePaused:
		return "QueuePaused"
	default:
		return "Unknown"
	}
}

// DriverManager owns the propagation loop: it prepares the Hamiltonian and
// trial state and advances a run's walker ensemble to completion.
type DriverManager interface {
	Setup(*Conf) error
	Execute(Run) error
	Validate(*RunParams) error
	GetEngineInfo() *EngineInfo
}

// EnergyEstimator evaluates the local energy of a single walker, possibly
// by dispatching circuits to a quantum backend.
type EnergyEstimator interface {
	Setup(*Conf) error
	Name() string
	Accepts(name string) bool
	Estimate(h *afqmc.Hamiltonian, trial *afqmc.Trial, w *afqmc.Walker) (complex128, error)
}

func DEFAULT_RUN_PARAMS() *RunParams {
	return &RunParams{
		Timestep:   0.01,
		NumSteps:   100,
		NumWalkers: 32,
		UseDefault: true,
	}
}

type Scheduler interface {
	Setup(*Conf) error
	Start() error
	HandleRun(Run)
	// Queue Data Access
	GetCurrentQueueSize() int
	IsOverRefillThreshold() bool
}

type StoreManager interface {
	Setup(StoreChan, *Conf) error
	Insert(Run) error
	Get(string) (Run, error)
	Update(Run) error
	Delete(string) error

	AddToInnerRunIDSet(string)
	RemoveFromInnerRunIDSet(string)
	ExistInInnerRunIDSet(string) bool
}

type SystemComponents struct {
	*dig.Container
	*Channels
}

func NewSystemComponents(con *dig.Container) *SystemComponents {
	return &SystemComponents{
		con,
		NewChannels(),
	}
}

func GetSystemComponents() *SystemComponents {
	return systemComponents
}

func (s *SystemComponents) Setup(conf *Conf) error {
	storeChan := s.StoreChan

	zap.L().Debug("Setting up estimator")
	var err error
	err = s.Invoke(
		func(e EnergyEstimator) error {
			return e.Setup(conf)
		})
	if err != nil {
		return err
	}

	zap.L().Debug("Setting up scheduler")
	err = s.Invoke(
		func(sc Scheduler) error {
			return sc.Setup(conf)
		})
	if err != nil {
		return err
	}

	zap.L().Debug("Setting up store")
	err = s.Invoke(
		func(st StoreManager) error {
			return st.Setup(storeChan, conf)
		})
	if err != nil {
		return err
	}

	zap.L().Debug("Setting up driver")
	err = s.Invoke(func(d DriverManager) error {
		return d.Setup(conf)
	})
	if err != nil {
		return err
	}
	systemComponents = s
	return nil
}

func (s *SystemComponents) TearDown() {
	s.Channels.Close()
}

func (s *SystemComponents) StartContainer() error {
	return s.Container.Invoke(
		func(sc Scheduler) error {
			return sc.Start()
		})
}

func (s *SystemComponents) GetEngineInfo() *EngineInfo {
	var engineInfo *EngineInfo
	s.Invoke(
		func(d DriverManager) error {
			engineInfo = d.GetEngineInfo()
			return nil
		})
	return engineInfo
}

func (s *SystemComponents) GetCurrentQueueSize() int {
	var size int
	s.Invoke(
		func(sc Scheduler) {
			size = sc.GetCurrentQueueSize()
		})
	return size
}

func (s *SystemComponents) IsQueueOverRefillThreshold() bool {
	var over bool
	s.Invoke(
		func(sc Scheduler) {
			over = sc.IsOverRefillThreshold()
		})
	return over
}
