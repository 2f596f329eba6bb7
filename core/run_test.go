//go:build unit
// +build unit

package core

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRunManager(t *testing.T) {
	s := SCWithUnimplementedContainer()
	defer s.TearDown()
	rm, err := NewRunManager(
		&NormalRun{},
	)
	assert.Nil(t, err)
	assert.NotNil(t, rm)
	as := rm.AcceptableRunTypes()
	assert.Equal(t, len(as), 1)
	assert.Equal(t, as[0], "normal")

	err = rm.RegisterRun(&NormalRun{})
	assert.EqualError(t, err, "run:normal is already registered")

	as = rm.AcceptableRunTypes()
	assert.Equal(t, len(as), 1)
	assert.Equal(t, as[0], "normal")

	rc, err := NewRunContext()
	assert.Nil(t, err)

	run, err := rm.NewRunFromRunData(
		&RunData{ID: "test"},
		rc,
	)

	assert.Nil(t, err)
	assert.Equal(t, run.RunData().ID, "test")
}

func TestNewRun(t *testing.T) {
	s := SCWithStoreContainer()
	defer s.TearDown()

	rm, err := NewRunManager()
	assert.Nil(t, err)
	assert.NotNil(t, rm)
	rm.RegisterRun(&NormalRun{})

	tests := []struct {
		name        string
		param       *RunParam
		wantError   string
		wantRunData *RunData
	}{
		{
			name: "0 walkers",
			param: &RunParam{
				RunID:  uuid.NewString(),
				Params: &RunParams{Timestep: 0.01, NumSteps: 100, NumWalkers: 0},
			},
			wantError: "walkers(0) must be greater than 0",
		},
		{
			name: "negative walkers",
			param: &RunParam{
				RunID:  uuid.NewString(),
				Params: &RunParams{Timestep: 0.01, NumSteps: 100, NumWalkers: -1},
			},
			wantError: "walkers(-1) must be greater than 0",
		},
		{
			name: "over max walkers",
			param: &RunParam{
				RunID:  uuid.NewString(),
				Params: &RunParams{Timestep: 0.01, NumSteps: 100, NumWalkers: MockMaxWalkers + 1},
			},
			wantError: fmt.Sprintf(
				"walkers(%d) is over the limit(%d)",
				MockMaxWalkers+1, MockMaxWalkers),
		},
		{
			name: "0 steps",
			param: &RunParam{
				RunID:  uuid.NewString(),
				Params: &RunParams{Timestep: 0.01, NumSteps: 0, NumWalkers: 32},
			},
			wantError: "steps(0) must be greater than 0",
		},
		{
			name: "0 timestep",
			param: &RunParam{
				RunID:  uuid.NewString(),
				Params: &RunParams{Timestep: 0, NumSteps: 100, NumWalkers: 32},
			},
			wantError: "timestep(0) must be greater than 0",
		},
		{
			name: "empty runID",
			param: &RunParam{
				RunID:  "",
				Params: &RunParams{Timestep: 0.01, NumSteps: 100, NumWalkers: 32},
			},
			wantError: "runID is empty",
		},
		{
			name: "normal with max walkers",
			param: &RunParam{
				RunID:  uuid.NewString(),
				Params: &RunParams{Timestep: 0.01, NumSteps: 100, NumWalkers: MockMaxWalkers},
			},
			wantError: "",
			wantRunData: &RunData{
				RunType: NORMAL_RUN,
				Params:  &RunParams{Timestep: 0.01, NumSteps: 100, NumWalkers: MockMaxWalkers},
			},
		},
		{
			name: "normal with defaults",
			param: &RunParam{
				RunID: uuid.NewString(),
			},
			wantError: "",
			wantRunData: &RunData{
				RunType: NORMAL_RUN,
				Params:  DEFAULT_RUN_PARAMS(),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, err := NewRunContext()
			assert.Nil(t, err)
			run, err := rm.NewRunWithValidation(tt.param, rc)
			if tt.wantError == "" {
				assert.Nil(t, err)
				tt.wantRunData.ID = tt.param.RunID
				tt.wantRunData.Result = NewResult()
				tt.wantRunData.Created = run.RunData().Created // ignore time
				assert.Equal(t, run.RunData(), tt.wantRunData)
			} else {
				assert.Equal(t, err.Error(), tt.wantError)
			}
		})
	}
}

func TestCloneNormalRun(t *testing.T) {
	s := SCWithUnimplementedContainer()
	defer s.TearDown()
	rm, err := NewRunManager(&NormalRun{})
	assert.Nil(t, err)

	rd := &RunData{
		ID:     "test",
		Params: DEFAULT_RUN_PARAMS(),
	}
	rc, err := NewRunContext()
	assert.Nil(t, err)
	org, err := rm.NewRunFromRunData(rd, rc)
	assert.Nil(t, err)
	cloned := org.Clone()
	assert.Nil(t, err)
	assert.False(t, cloned == org)
	assert.False(t, cloned.RunData() == org.RunData(),
		"cloned.RunData()=%p, org.RunData()=%p", cloned.RunData(), org.RunData())
	assert.Equal(t, cloned.RunData().ID, org.RunData().ID)
	assert.Equal(t, cloned.RunData().Params, org.RunData().Params)

	org.RunData().ID = "test2"
	assert.NotEqual(t, cloned.RunData().ID, org.RunData().ID)

	org.RunData().Status = RUNNING
	cloned.RunData().Status = SUCCEEDED
	assert.NotEqual(t, cloned.RunData().Status, org.RunData().Status)
}
