// Package driver owns the propagation loop: it prepares the Hamiltonian
// and trial determinant from the configured integrals and advances a run's
// walker ensemble step by step, fanning the independent walker updates out
// to a bounded worker pool.
package driver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"time"

	"github.com/go-openapi/strfmt"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/phaseless-team/afqmc-engine/afqmc"
	"github.com/phaseless-team/afqmc-engine/core"
	enginelog "github.com/phaseless-team/afqmc-engine/log"
)

// ErrPopulationCollapse reports that every walker of a run was evicted.
var ErrPopulationCollapse = errors.New("walker population collapsed")

// symmetric-Trotter error grows too fast above this step size
const maxStableTimestep = 0.1

const branchRNGStream = 1 << 30

type AFQMCDriver struct {
	conf       *core.Conf
	integrals  *MolecularIntegrals
	ham        *afqmc.Hamiltonian
	trial      *afqmc.Trial
	maxWorkers int
}

func (d *AFQMCDriver) Setup(conf *core.Conf) error {
	d.conf = conf
	var m *MolecularIntegrals
	if conf.IntegralsPath == "" {
		zap.L().Info("no integrals file is configured. using the built-in minimal hydrogen system")
		m = builtinH2()
	} else {
		loaded, err := LoadMolecularIntegrals(conf.IntegralsPath)
		if err != nil {
			return err
		}
		m = loaded
	}
	h1, eri, ecore := m.SpinOrbital()
	ham, err := afqmc.NewHamiltonian(h1, eri, ecore)
	if err != nil {
		return fmt.Errorf("failed to build the Hamiltonian/reason:%s", err)
	}
	d.integrals = m
	d.ham = ham
	d.trial = m.GroundTrial()
	d.maxWorkers = conf.MaxWorkers
	if d.maxWorkers <= 0 {
		d.maxWorkers = runtime.NumCPU()
	}
	zap.L().Info(fmt.Sprintf("driver is ready/spin orbitals:%d/electrons:%d/fields:%d/workers:%d",
		ham.NumOrbitals, m.NumElectrons, len(ham.Fields), d.maxWorkers))
	return nil
}

func (d *AFQMCDriver) Validate(p *core.RunParams) error {
	if p.Timestep <= 0 {
		return fmt.Errorf("timestep(%g) must be greater than 0", p.Timestep)
	}
	if p.Timestep > maxStableTimestep {
		return fmt.Errorf("timestep(%g) is over the stability limit", p.Timestep)
	}
	if p.NumSteps <= 0 {
		return fmt.Errorf("steps(%d) must be greater than 0", p.NumSteps)
	}
	if p.NumWalkers <= 0 {
		return fmt.Errorf("walkers(%d) must be greater than 0", p.NumWalkers)
	}
	if p.CheckpointInterval < 0 {
		return fmt.Errorf("checkpoint interval(%d) must not be negative", p.CheckpointInterval)
	}
	for _, ct := range p.CheckpointTimes {
		if ct <= 0 {
			return fmt.Errorf("checkpoint time(%g) must be greater than 0", ct)
		}
	}
	return nil
}

func (d *AFQMCDriver) GetEngineInfo() *core.EngineInfo {
	spec := core.EngineSpec{
		EngineID: "phaseless-afqmc",
		Backends: []core.BackendSpec{
			{Name: "statevector", MaxQubits: 16, Exact: true},
			{Name: "dummy", MaxQubits: 16, Exact: false},
		},
	}
	specJson, err := jsonIter.Marshal(&spec)
	if err != nil {
		zap.L().Error(fmt.Sprintf("failed to marshal engine spec/reason:%s", err))
	}
	return &core.EngineInfo{
		EngineName:     "afqmc-engine",
		ProviderName:   "phaseless-team",
		Type:           "simulator",
		Status:         core.Available,
		MaxOrbitals:    64,
		MaxWalkers:     4096,
		EngineSpecJson: string(specJson),
	}
}

func (d *AFQMCDriver) Execute(r core.Run) error {
	return d.ExecuteContext(context.Background(), r)
}

// ExecuteContext runs the full propagation loop for one run. Cancelling the
// context stops the loop between walker updates and marks the run
// CANCELLED; any other failure marks it FAILED.
func (d *AFQMCDriver) ExecuteContext(ctx context.Context, r core.Run) error {
	rd := r.RunData()
	start := time.Now()
	err := d.propagate(ctx, r)
	rd.Result.ExecutionTime = time.Since(start)
	rd.Ended = strfmt.DateTime(time.Now())
	switch {
	case err == nil:
		rd.Status = core.SUCCEEDED
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		rd.Result.Message = err.Error()
		rd.Status = core.CANCELLED
	default:
		rd.Result.Message = err.Error()
		rd.Status = core.FAILED
	}
	return err
}

// walkerOutcome is the per-walker result of one step. Exactly one of
// walker and err is set; a failed walker is evicted, the rest of the step
// survives.
type walkerOutcome struct {
	walker *afqmc.Walker
	eloc   complex128
	err    error
}

func (d *AFQMCDriver) propagate(ctx context.Context, r core.Run) error {
	rd := r.RunData()
	p := rd.Params
	if err := d.Validate(p); err != nil {
		return err
	}

	prop := afqmc.NewPropagator(d.ham, d.trial, p.Timestep)
	pop := afqmc.NewPopulation(d.trial, p.NumWalkers)
	eshift := real(afqmc.LocalEnergy(d.ham, d.trial.Greens()))
	startStep := 1

	if len(rd.Checkpoint) != 0 {
		cp, restored, err := restorePopulation(rd.Checkpoint)
		if err != nil {
			return fmt.Errorf("failed to restore run(%s) from checkpoint/reason:%s", rd.ID, err)
		}
		pop = restored
		eshift = cp.EnergyShift
		startStep = cp.Step + 1
		zap.L().Info(fmt.Sprintf("run(%s) resumes from step %d at tau=%g", rd.ID, startStep, cp.Tau))
	}

	estimator, err := d.lookupEstimator(p.Estimator)
	if err != nil {
		return err
	}

	workers := d.maxWorkers
	if workers > len(pop) {
		workers = len(pop)
	}
	pool := newWalkerPool(workers)
	defer pool.Close()

	ckptTimes := checkpointTimeSet(p.CheckpointTimes)

	for step := startStep; step <= p.NumSteps; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		tau := roundTau(float64(step) * p.Timestep)
		checkpoint := false
		if ckptTimes != nil {
			_, checkpoint = ckptTimes[tau]
		} else {
			checkpoint = p.CheckpointInterval > 0 && step%p.CheckpointInterval == 0
		}
		quantum := estimator != nil && checkpoint
		var est core.EnergyEstimator
		if quantum {
			est = estimator
		}

		outcomes := make([]walkerOutcome, len(pop))
		done := make(chan int, len(pop))
		for i := range pop {
			i := i
			w := pop[i]
			submitErr := pool.Submit(ctx, func() {
				outcomes[i] = d.updateWalker(prop, est, p.Seed, step, i, w, eshift)
				done <- i
			})
			if submitErr != nil {
				return submitErr
			}
		}
		for range pop {
			<-done
		}

		rec, survivors, err := d.collectStep(rd.ID, step, outcomes)
		if err != nil {
			return err
		}
		rec.Quantum = quantum
		eshift = rec.Energy

		branched := 0
		if !p.DisableBranching && len(survivors) > 0 {
			rng := afqmc.WalkerRNG(p.Seed, step, branchRNGStream)
			survivors, branched = combBranch(survivors, p.NumWalkers, rng)
		}
		rec.Branched = branched
		pop = survivors
		rd.Result.Trace = append(rd.Result.Trace, rec)
		enginelog.LogMetric("energy", rec.Energy, step)
		enginelog.LogMetric("total_weight", rec.TotalWeight, step)

		if checkpoint {
			raw, cpErr := snapshotPopulation(step, tau, eshift, pop)
			if cpErr != nil {
				zap.L().Warn(fmt.Sprintf("failed to snapshot run(%s) at step %d/reason:%s", rd.ID, step, cpErr))
			} else {
				rd.Checkpoint = raw
				d.persist(r)
			}
		}
	}

	energies := []float64{}
	for _, rec := range rd.Result.Trace[len(rd.Result.Trace)/2:] {
		energies = append(energies, rec.Energy)
	}
	rd.Result.Energy = stat.Mean(energies, nil)
	if len(energies) > 1 {
		rd.Result.Stds = stat.StdDev(energies, nil)
	}
	return nil
}

// roundTau places a simulated time on the 4-decimal grid checkpoint times
// are expressed on.
func roundTau(t float64) float64 {
	return math.Round(t*1e4) / 1e4
}

// checkpointTimeSet maps the requested checkpoint times onto the grid. Nil
// when the run uses the interval stride instead.
func checkpointTimeSet(times []float64) map[float64]struct{} {
	if len(times) == 0 {
		return nil
	}
	set := make(map[float64]struct{}, len(times))
	for _, t := range times {
		set[roundTau(t)] = struct{}{}
	}
	return set
}

// updateWalker advances one walker by one step: force-biased field sampling,
// symmetric-Trotter propagation, reorthonormalization, local energy, and the
// phaseless weight update. The RNG is derived from (seed, step, walker) so
// the result does not depend on worker scheduling.
func (d *AFQMCDriver) updateWalker(
	prop *afqmc.Propagator,
	est core.EnergyEstimator,
	seed int64, step, idx int,
	w *afqmc.Walker,
	eshift float64,
) walkerOutcome {
	rng := afqmc.WalkerRNG(seed, step, idx)
	g, err := afqmc.GreensFunction(d.trial, w.Mat)
	if err != nil {
		return walkerOutcome{err: fmt.Errorf("green's function of walker %d:%w", idx, err)}
	}
	oldOv := afqmc.Overlap(d.trial, w.Mat)

	fields := afqmc.SampleFields(rng, prop.NumFields())
	stepped, err := prop.Step(fields, w.Mat, g)
	if err != nil {
		return walkerOutcome{err: fmt.Errorf("propagation of walker %d:%w", idx, err)}
	}
	newOv := afqmc.Overlap(d.trial, stepped)

	q, _, err := afqmc.Reortho(stepped)
	if err != nil {
		return walkerOutcome{err: fmt.Errorf("reorthonormalization of walker %d:%w", idx, err)}
	}
	next := &afqmc.Walker{Mat: q, Weight: w.Weight}

	var eloc complex128
	if est != nil {
		eloc, err = est.Estimate(d.ham, d.trial, next)
	} else {
		g2, gErr := afqmc.GreensFunction(d.trial, q)
		if gErr != nil {
			err = gErr
		} else {
			eloc = afqmc.LocalEnergy(d.ham, g2)
		}
	}
	if err != nil {
		return walkerOutcome{err: fmt.Errorf("local energy of walker %d:%w", idx, err)}
	}

	next.Weight = afqmc.Reweight(w.Weight, eloc, eshift, newOv, oldOv, prop.Dt())
	return walkerOutcome{walker: next, eloc: eloc}
}

// collectStep folds the per-walker outcomes into a trace record: failed and
// under-cutoff walkers are evicted, the rest carry a weighted mean energy
// that becomes the next step's shift reference.
func (d *AFQMCDriver) collectStep(runID string, step int, outcomes []walkerOutcome) (core.StepRecord, []*afqmc.Walker, error) {
	survivors := make([]*afqmc.Walker, 0, len(outcomes))
	evicted := 0
	failures := 0
	totalWeight := 0.0
	weightedE := 0.0
	for _, out := range outcomes {
		if out.err != nil {
			failures++
			evicted++
			zap.L().Warn(fmt.Sprintf("evicting walker of run(%s) at step %d/reason:%s", runID, step, out.err))
			continue
		}
		if out.walker.Weight <= afqmc.WeightCutoff {
			evicted++
			continue
		}
		survivors = append(survivors, out.walker)
		totalWeight += out.walker.Weight
		weightedE += out.walker.Weight * real(out.eloc)
	}
	if failures > 0 {
		zap.L().Warn(fmt.Sprintf("run(%s) lost %d walkers to update failures at step %d", runID, failures, step))
	}
	if len(survivors) == 0 {
		return core.StepRecord{}, nil, fmt.Errorf("run(%s) at step %d:%w", runID, step, ErrPopulationCollapse)
	}
	rec := core.StepRecord{
		Step:        step,
		Energy:      weightedE / totalWeight,
		TotalWeight: totalWeight,
		Population:  len(survivors),
		Evicted:     evicted,
	}
	return rec, survivors, nil
}

// combBranch restores the population to target size with a stochastic comb:
// one uniform offset, target equally spaced teeth over the cumulative
// weights, survivors copied once per tooth and all weights reset to the
// mean. Returns the number of walkers not copied exactly once.
func combBranch(pop []*afqmc.Walker, target int, rng *rand.Rand) ([]*afqmc.Walker, int) {
	total := 0.0
	for _, w := range pop {
		total += w.Weight
	}
	spacing := total / float64(target)
	u := rng.Float64() * spacing

	copies := make([]int, len(pop))
	cum := 0.0
	i := 0
	for j := 0; j < target; j++ {
		pos := u + float64(j)*spacing
		for i < len(pop)-1 && cum+pop[i].Weight <= pos {
			cum += pop[i].Weight
			i++
		}
		copies[i]++
	}

	mean := total / float64(target)
	out := make([]*afqmc.Walker, 0, target)
	branched := 0
	for i, c := range copies {
		if c != 1 {
			branched++
		}
		for j := 0; j < c; j++ {
			w := pop[i].Clone()
			w.Weight = mean
			out = append(out, w)
		}
	}
	return out, branched
}

// lookupEstimator resolves the run's estimator name against the configured
// EnergyEstimator. An empty name selects the classical contraction.
func (d *AFQMCDriver) lookupEstimator(name string) (core.EnergyEstimator, error) {
	if name == "" {
		return nil, nil
	}
	s := core.GetSystemComponents()
	if s == nil {
		return nil, fmt.Errorf("estimator %s is requested but system components are not initialized", name)
	}
	var est core.EnergyEstimator
	err := s.Container.Invoke(
		func(e core.EnergyEstimator) error {
			if !e.Accepts(name) {
				return fmt.Errorf("estimator %s is not acceptable", name)
			}
			est = e
			return nil
		})
	if err != nil {
		return nil, err
	}
	return est, nil
}

// persist pushes the current run data to the store. Best effort: a run
// without channels (direct driver use) skips it.
func (d *AFQMCDriver) persist(r core.Run) {
	rc := r.RunContext()
	if rc == nil || rc.Channels == nil || rc.StoreChan == nil {
		return
	}
	rc.StoreChan <- r.Clone()
}
