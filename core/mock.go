package core

import (
	"fmt"

	"go.uber.org/dig"

	"github.com/phaseless-team/afqmc-engine/afqmc"
)

const MockMaxOrbitals int = 16
const MockMaxWalkers int = 1024
const validateErrorMessage string = "timestep(0.5) is over the stability limit"

type UnimplementedRun struct {
	runData    *RunData
	runContext *RunContext
}

func (r *UnimplementedRun) New(rd *RunData, rc *RunContext) Run {
	return &UnimplementedRun{
		runData:    rd,
		runContext: rc,
	}
}

func (r *UnimplementedRun) PreProcess() {
	return
}

func (r *UnimplementedRun) Process() {
	return
}

func (r *UnimplementedRun) PostProcess() {
	return
}

func (r *UnimplementedRun) IsFinished() bool {
	return r.RunData().Status == SUCCEEDED || r.RunData().Status == FAILED
}

func (r *UnimplementedRun) RunData() *RunData {
	return r.runData
}

func (r *UnimplementedRun) RunType() string {
	return r.runData.RunType
}

func (r *UnimplementedRun) RunContext() *RunContext {
	return r.runContext
}

func (r *UnimplementedRun) Clone() Run {
	cloned := &UnimplementedRun{
		runData:    r.runData.Clone(),
		runContext: r.runContext,
	}
	return cloned
}

type UnimplementedDriver struct{}

func (u *UnimplementedDriver) Setup(*Conf) error {
	return nil
}

func (u *UnimplementedDriver) Execute(Run) error {
	return nil
}

func (u *UnimplementedDriver) Validate(*RunParams) error {
	return nil
}

func (u *UnimplementedDriver) GetEngineInfo() *EngineInfo {
	return &EngineInfo{
		MaxOrbitals: MockMaxOrbitals,
		MaxWalkers:  MockMaxWalkers,
		EngineName:  "unimplementedDriver",
		EngineSpecJson: `
			{
			"engine_id": "DummyEngine",
			"backends":
			[{
			"name": "statevector", "max_qubits": 16, "exact": true
			},
			{
			"name": "dummy", "max_qubits": 16, "exact": false
			}]
			}`,
	}
}

type validateErrorDriverForTest struct {
	UnimplementedDriver
}

func (validateErrorDriverForTest) Validate(*RunParams) error {
	return fmt.Errorf(validateErrorMessage)
}

type successDriverForTest struct {
	UnimplementedDriver
}

func (successDriverForTest) Execute(r Run) error {
	r.RunData().Status = SUCCEEDED
	return nil
}

type unimplementedStore struct {
	innerRunIDSet map[string]struct{}
}

func (u *unimplementedStore) Setup(StoreChan, *Conf) error {
	u.innerRunIDSet = make(map[string]struct{})
	return nil
}
func (u *unimplementedStore) Insert(Run) error { return nil }
func (u *unimplementedStore) Get(runID string) (Run, error) {
	return &NormalRun{}, nil
}
func (u *unimplementedStore) Update(Run) error    { return nil }
func (u *unimplementedStore) Delete(string) error { return nil }
func (u *unimplementedStore) AddToInnerRunIDSet(runID string) {
	u.innerRunIDSet[runID] = struct{}{}
}
func (u *unimplementedStore) RemoveFromInnerRunIDSet(runID string) {
	delete(u.innerRunIDSet, runID)
}
func (u *unimplementedStore) ExistInInnerRunIDSet(runID string) bool {
	_, ok := u.innerRunIDSet[runID]
	return ok
}

type successStoreForTest struct {
	unimplementedStore
}

func (successStoreForTest) Get(runID string) (Run, error) {
	return &NormalRun{
		runData: &RunData{
			ID:     runID,
			Status: RUNNING,
		},
	}, nil
}

type notFindStoreForTest struct {
	unimplementedStore
}

func (notFindStoreForTest) Get(runID string) (Run, error) {
	return &NormalRun{}, fmt.Errorf("failed to find %s", runID)
}

type acceptAllEstimatorForTest struct{}

func (acceptAllEstimatorForTest) Setup(*Conf) error { return nil }
func (acceptAllEstimatorForTest) Name() string      { return "accept-all" }
func (acceptAllEstimatorForTest) Accepts(string) bool {
	return true
}
func (acceptAllEstimatorForTest) Estimate(*afqmc.Hamiltonian, *afqmc.Trial, *afqmc.Walker) (complex128, error) {
	return 0, nil
}

type unimplementedScheduler struct{}

func (u *unimplementedScheduler) Setup(*Conf) error           { return nil }
func (u *unimplementedScheduler) Start() error                { return nil }
func (u *unimplementedScheduler) HandleRun(_ Run)             { return }
func (u *unimplementedScheduler) GetCurrentQueueSize() int    { return 0 }
func (u *unimplementedScheduler) IsOverRefillThreshold() bool { return false }

func SCWithUnimplementedContainer() *SystemComponents {
	c := dig.New()
	c.Provide(func() DriverManager { return &successDriverForTest{} })
	c.Provide(func() EnergyEstimator { return &acceptAllEstimatorForTest{} })
	c.Provide(func() StoreManager {
		st := &successStoreForTest{}
		st.Setup(nil, &Conf{})
		return st
	})
	c.Provide(func() Scheduler { return &unimplementedScheduler{} })
	s := NewSystemComponents(c)
	s.Setup(&Conf{})
	return s
}

func SCWithValidateErrorContainer() *SystemComponents {
	c := dig.New()
	c.Provide(func() DriverManager { return &validateErrorDriverForTest{} })
	c.Provide(func() EnergyEstimator { return &acceptAllEstimatorForTest{} })
	c.Provide(func() StoreManager {
		st := &successStoreForTest{}
		st.Setup(nil, &Conf{})
		return st
	})
	c.Provide(func() Scheduler { return &unimplementedScheduler{} })
	s := NewSystemComponents(c)
	s.Setup(&Conf{})
	return s
}

func SCWithStoreContainer() *SystemComponents {
	c := dig.New()
	c.Provide(func() DriverManager { return &successDriverForTest{} })
	c.Provide(func() EnergyEstimator { return &acceptAllEstimatorForTest{} })
	c.Provide(func() StoreManager { return &MemoryStore{} })
	c.Provide(func() Scheduler { return &unimplementedScheduler{} })
	s := NewSystemComponents(c)
	s.Setup(&Conf{})
	return s
}

func SCWithScheduler(sc Scheduler) *SystemComponents {
	c := dig.New()
	c.Provide(func() DriverManager { return &successDriverForTest{} })
	c.Provide(func() EnergyEstimator { return &acceptAllEstimatorForTest{} })
	c.Provide(func() StoreManager { return &MemoryStore{} })
	c.Provide(func() Scheduler { return sc })
	s := NewSystemComponents(c)
	s.Setup(&Conf{QueueMaxSize: 1000})
	return s
}
