//go:build unit
// +build unit

package core

import (
	"testing"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/go-openapi/strfmt"
	"github.com/stretchr/testify/assert"
)

func TestResultToString(t *testing.T) {
	tests := []struct {
		name       string
		result     *Result
		wantString string
	}{
		{
			name:   "empty result",
			result: NewResult(),
			wantString: heredoc.Doc(`
			  {
			    "energy": 0,
			    "stds": 0,
			    "trace": [],
			    "message": "",
			    "execution_time": 0
			  }
			`),
		},
		{
			name:   "message in result",
			result: messageInResult(),
			wantString: heredoc.Docf(`
			  {
			    "energy": 0,
			    "stds": 0,
			    "trace": [],
			    "message": "dummy message",
			    "execution_time": 0
			  }
			`),
		},
		{
			name:   "trace in result",
			result: traceInResult(),
			wantString: heredoc.Docf(`
			  {
			    "energy": -1.125,
			    "stds": 0,
			    "trace": [
			      {
			        "step": 1,
			        "energy": -1.125,
			        "total_weight": 31.5,
			        "population": 32,
			        "evicted": 0,
			        "branched": 0,
			        "quantum": false
			      }
			    ],
			    "message": "",
			    "execution_time": 0
			  }
			`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			act := tt.result.ToString()
			assert.Equal(t, tt.wantString, act)
		})
	}
}

func messageInResult() *Result {
	r := NewResult()
	r.Message = "dummy message"
	return r
}

func traceInResult() *Result {
	r := NewResult()
	r.Energy = -1.125
	r.Trace = append(r.Trace, StepRecord{
		Step:        1,
		Energy:      -1.125,
		TotalWeight: 31.5,
		Population:  32,
	})
	return r
}

func TestCloneRunData(t *testing.T) {
	tests := []struct {
		name    string
		runData *RunData
	}{
		{
			name: "no properties",
			runData: &RunData{
				ID:      "dummy_id",
				Params:  DEFAULT_RUN_PARAMS(),
				Result:  NewResult(),
				Created: strfmt.NewDateTime(),
				Ended:   strfmt.NewDateTime(),
			},
		},
		{
			name: "with properties",
			runData: &RunData{
				ID:         "dummy_id",
				Params:     DEFAULT_RUN_PARAMS(),
				Result:     traceInResult(),
				Checkpoint: CheckpointRaw(`{"step":5}`),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clonedRunData := tt.runData.Clone()

			assert.False(t, tt.runData == clonedRunData)
			assert.Equal(t, tt.runData.ID, clonedRunData.ID)
			assert.Equal(t, tt.runData.Params, clonedRunData.Params)
			assert.Equal(t, tt.runData.Created, clonedRunData.Created)
			assert.Equal(t, tt.runData.Ended, clonedRunData.Ended)
			assert.Equal(t, tt.runData.Checkpoint, clonedRunData.Checkpoint)
			assert.False(t, tt.runData.Result == clonedRunData.Result)
		})
	}
}

func TestUnmarshalToRunParams(t *testing.T) {
	pj := `
{ "timestep": 0.005, "num_steps": 200, "num_walkers": 64, "seed": 42, "estimator": "statevector" }
`
	p := UnmarshalToRunParams(pj)
	assert.Equal(t, 0.005, p.Timestep)
	assert.Equal(t, 200, p.NumSteps)
	assert.Equal(t, 64, p.NumWalkers)
	assert.Equal(t, int64(42), p.Seed)
	assert.Equal(t, "statevector", p.Estimator)
}

func TestMarshalRunParams(t *testing.T) {
	p := RunParams{Timestep: 0.01, NumSteps: 100, NumWalkers: 32}
	b, err := jsonIter.Marshal(p)
	assert.Nil(t, err)
	assert.Equal(t, string(b),
		`{"timestep":0.01,"num_steps":100,"num_walkers":32,"seed":0,"checkpoint_interval":0,"disable_branching":false,"estimator":""}`)
}
