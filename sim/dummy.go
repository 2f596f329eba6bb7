package sim

import (
	"fmt"

	"go.uber.org/zap"
)

const DummyRunnerName = "dummy"

// DummyRunner is a circuit backend for tests. It reports uniform
// probabilities, or a fixed error when FailEvery divides the call count.
type DummyRunner struct {
	FailEvery int

	calls int
}

func (d *DummyRunner) Name() string { return DummyRunnerName }

func (d *DummyRunner) Run(c Circuit, start, numQubits int) ([]float64, error) {
	d.calls++
	if d.FailEvery > 0 && d.calls%d.FailEvery == 0 {
		zap.L().Debug(fmt.Sprintf("[Dummy] injecting failure on call %d", d.calls))
		return nil, fmt.Errorf("dummy backend failure on call %d", d.calls)
	}
	probs := make([]float64, 1<<numQubits)
	for i := range probs {
		probs[i] = 1 / float64(len(probs))
	}
	return probs, nil
}
