package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStageName(t *testing.T) {
	for _, name := range AllStages {
		parsed, err := ParseStageName(string(name))
		require.NoError(t, err)
		assert.Equal(t, name, parsed)
	}

	_, err := ParseStageName("salvage")
	assert.Error(t, err)
}

func TestStageStateWireForm(t *testing.T) {
	assert.Equal(t, "sweep_pending", Pending(StageSweep).String())
	assert.Equal(t, "destroy_running", Running(StageDestroy).String())
	assert.Equal(t, "evaluate_failed", Failed(StageEvaluate).String())
	assert.Equal(t, "completed", Completed().String())
}

func TestParseStageState(t *testing.T) {
	state, err := ParseStageState("investigate_running")
	require.NoError(t, err)
	assert.Equal(t, StageInvestigate, state.Name)
	assert.Equal(t, StatusRunning, state.Status)

	state, err = ParseStageState("completed")
	require.NoError(t, err)
	assert.True(t, state.IsCompleted())

	_, err = ParseStageState("sweep")
	assert.Error(t, err)
	_, err = ParseStageState("salvage_pending")
	assert.Error(t, err)
}

func TestStageStateJSON(t *testing.T) {
	data, err := json.Marshal(Pending(StageSweep))
	require.NoError(t, err)
	assert.Equal(t, `"sweep_pending"`, string(data))

	var state StageState
	require.NoError(t, json.Unmarshal([]byte(`"completed"`), &state))
	assert.True(t, state.IsCompleted())
}

func TestStageSetSweepAlways(t *testing.T) {
	// 扫雷阶段不受工作流配置影响
	set := StageSet{}
	assert.True(t, set.Has(StageSweep))
	assert.False(t, set.Has(StageInvestigate))

	set = FullStageSet()
	assert.True(t, set.Has(StageDestroy))
}

func TestStageSetNamesOrdered(t *testing.T) {
	set := StageSet{StageEvaluate: true, StageSweep: true, StageInvestigate: true}
	assert.Equal(t, []StageName{StageSweep, StageInvestigate, StageEvaluate}, set.Names())
}

func TestStageSetJSON(t *testing.T) {
	set := StageSet{StageSweep: true, StageDestroy: true}
	data, err := json.Marshal(set)
	require.NoError(t, err)
	assert.JSONEq(t, `["sweep", "destroy"]`, string(data))

	var parsed StageSet
	require.NoError(t, json.Unmarshal([]byte(`["sweep", "investigate"]`), &parsed))
	assert.True(t, parsed.Has(StageInvestigate))
	assert.False(t, parsed.Has(StageDestroy))
}

func TestDisplayStage(t *testing.T) {
	assert.Equal(t, "扫雷", DisplayStage("sweep_pending"))
	assert.Equal(t, "评估", DisplayStage("evaluate_failed"))
	assert.Equal(t, "完成", DisplayStage("completed"))
	assert.Equal(t, "任务", DisplayStage("created"))
}
