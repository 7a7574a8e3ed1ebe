package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fsl/mission-control/pkg/types"
)

func stageOf(t *testing.T, store *Store, id string) types.StageState {
	t.Helper()
	got, err := store.Get(id)
	require.NoError(t, err)
	return got.Stage
}

func TestFinishSweepSuspectsWithInvestigate(t *testing.T) {
	store := NewStore()
	store.Register(newTestTask("T1", types.FullStageSet()))

	outcome, err := store.FinishStage("T1", types.StageSweep, &types.StageReport{
		SuspectMines: minesPtr("m1", "m2"),
	})
	require.NoError(t, err)
	assert.False(t, outcome.Completed)
	assert.Nil(t, outcome.Snapshot)
	assert.Equal(t, types.Pending(types.StageInvestigate), stageOf(t, store, "T1"))
}

func TestFinishSweepNoFindingsWithInvestigate(t *testing.T) {
	// 查证阶段启用时即使没有疑似目标也交由查证阶段决断
	store := NewStore()
	store.Register(newTestTask("T1", types.FullStageSet()))

	outcome, err := store.FinishStage("T1", types.StageSweep, &types.StageReport{})
	require.NoError(t, err)
	assert.False(t, outcome.Completed)
	assert.Equal(t, types.Pending(types.StageInvestigate), stageOf(t, store, "T1"))
}

func TestFinishSweepConfirmedWithoutInvestigate(t *testing.T) {
	stages := types.StageSet{types.StageSweep: true, types.StageDestroy: true}
	store := NewStore()
	store.Register(newTestTask("T1", stages))

	confirmed := []types.Mine{{ID: "m1", Status: "confirmed"}}
	_, err := store.FinishStage("T1", types.StageSweep, &types.StageReport{
		ConfirmedMines: &confirmed,
	})
	require.NoError(t, err)
	assert.Equal(t, types.Pending(types.StageDestroy), stageOf(t, store, "T1"))
}

func TestFinishSweepConfirmedNoFollowupStage(t *testing.T) {
	store := NewStore()
	store.Register(newTestTask("T1", types.DefaultStageSet()))

	confirmed := []types.Mine{{ID: "m1", Status: "confirmed"}}
	outcome, err := store.FinishStage("T1", types.StageSweep, &types.StageReport{
		ConfirmedMines: &confirmed,
	})
	require.NoError(t, err)
	assert.True(t, outcome.Completed)
	require.NotNil(t, outcome.Snapshot)
	assert.Equal(t, types.Completed(), stageOf(t, store, "T1"))
}

func TestFinishSweepPromotesSuspectsForDestroy(t *testing.T) {
	// 只有灭雷无查证: 疑似目标直接提升为确认目标
	stages := types.StageSet{types.StageSweep: true, types.StageDestroy: true}
	store := NewStore()
	store.Register(newTestTask("T1", stages))

	_, err := store.FinishStage("T1", types.StageSweep, &types.StageReport{
		SuspectMines: minesPtr("m1", "m2"),
	})
	require.NoError(t, err)

	got, err := store.Get("T1")
	require.NoError(t, err)
	assert.Equal(t, types.Pending(types.StageDestroy), got.Stage)
	assert.Empty(t, got.SuspectMines)
	require.Len(t, got.ConfirmedMines, 2)
	for _, mine := range got.ConfirmedMines {
		assert.Equal(t, "confirmed", mine.Status)
	}
}

func TestFinishSweepSuspectsNoFollowup(t *testing.T) {
	store := NewStore()
	store.Register(newTestTask("T1", types.DefaultStageSet()))

	outcome, err := store.FinishStage("T1", types.StageSweep, &types.StageReport{
		SuspectMines: minesPtr("m1"),
	})
	require.NoError(t, err)
	assert.True(t, outcome.Completed)
	got, err := store.Get("T1")
	require.NoError(t, err)
	// 疑似目标保留在档, 任务直接完成
	assert.Len(t, got.SuspectMines, 1)
}

func TestFinishSweepNothingFound(t *testing.T) {
	store := NewStore()
	store.Register(newTestTask("T1", types.DefaultStageSet()))

	outcome, err := store.FinishStage("T1", types.StageSweep, &types.StageReport{})
	require.NoError(t, err)
	assert.True(t, outcome.Completed)
	assert.Equal(t, types.Completed(), stageOf(t, store, "T1"))
}

func TestFinishSweepAppendsTracksAndTimeline(t *testing.T) {
	store := NewStore()
	task := newTestTask("T1", types.FullStageSet())
	task.Tracks = []types.TrackPoint{{TingID: "usv-1", Phase: "sweep"}}
	store.Register(task)

	_, err := store.FinishStage("T1", types.StageSweep, &types.StageReport{
		Tracks: []types.TrackPoint{{TingID: "usv-2", Phase: "sweep"}},
	})
	require.NoError(t, err)

	got, err := store.Get("T1")
	require.NoError(t, err)
	assert.Len(t, got.Tracks, 2)
	require.NotEmpty(t, got.Timeline)
	last := got.Timeline[len(got.Timeline)-1]
	assert.Equal(t, "扫雷", last.Stage)
	assert.Contains(t, last.Message, "完成")
}

func TestFinishInvestigateProceedsToDestroy(t *testing.T) {
	store := NewStore()
	task := newTestTask("T1", types.FullStageSet())
	task.SuspectMines = mines("m1", "m2")
	store.Register(task)

	confirmed := []types.Mine{{ID: "m1", Status: "confirmed"}}
	cleared := []types.Mine{{ID: "m2", Status: "cleared"}}
	_, err := store.FinishStage("T1", types.StageInvestigate, &types.StageReport{
		ConfirmedMines: &confirmed,
		ClearedMines:   &cleared,
	})
	require.NoError(t, err)

	got, err := store.Get("T1")
	require.NoError(t, err)
	assert.Equal(t, types.Pending(types.StageDestroy), got.Stage)
	assert.Len(t, got.ConfirmedMines, 1)
	assert.Len(t, got.ClearedMines, 1)
}

func TestFinishInvestigateAllClearedStillProceeds(t *testing.T) {
	// 灭雷阶段启用时即使全部排除也进入灭雷, 由其自行决断
	store := NewStore()
	store.Register(newTestTask("T1", types.FullStageSet()))

	cleared := []types.Mine{{ID: "m1", Status: "cleared"}}
	_, err := store.FinishStage("T1", types.StageInvestigate, &types.StageReport{
		ClearedMines: &cleared,
	})
	require.NoError(t, err)
	assert.Equal(t, types.Pending(types.StageDestroy), stageOf(t, store, "T1"))
}

func TestFinishInvestigateWithoutDestroyCompletes(t *testing.T) {
	stages := types.StageSet{types.StageSweep: true, types.StageInvestigate: true}
	store := NewStore()
	store.Register(newTestTask("T1", stages))

	outcome, err := store.FinishStage("T1", types.StageInvestigate, &types.StageReport{
		ConfirmedMines: minesPtr("m1"),
	})
	require.NoError(t, err)
	assert.True(t, outcome.Completed)
}

func TestFinishDestroyProceedsToEvaluate(t *testing.T) {
	store := NewStore()
	task := newTestTask("T1", types.FullStageSet())
	task.EvaluatedMines = mines("stale")
	store.Register(task)

	destroyed := []types.Mine{{ID: "m1", Status: "destroyed"}}
	_, err := store.FinishStage("T1", types.StageDestroy, &types.StageReport{
		DestroyedMines: &destroyed,
	})
	require.NoError(t, err)

	got, err := store.Get("T1")
	require.NoError(t, err)
	assert.Equal(t, types.Pending(types.StageEvaluate), got.Stage)
	// 进入评估前清空上一轮评估结果
	assert.Empty(t, got.EvaluatedMines)
}

func TestFinishDestroyNothingDestroyedCompletes(t *testing.T) {
	store := NewStore()
	store.Register(newTestTask("T1", types.FullStageSet()))

	outcome, err := store.FinishStage("T1", types.StageDestroy, &types.StageReport{})
	require.NoError(t, err)
	assert.True(t, outcome.Completed)
}

func TestFinishDestroyWithoutEvaluateCompletes(t *testing.T) {
	stages := types.StageSet{types.StageSweep: true, types.StageDestroy: true}
	store := NewStore()
	store.Register(newTestTask("T1", stages))

	outcome, err := store.FinishStage("T1", types.StageDestroy, &types.StageReport{
		DestroyedMines: minesPtr("m1"),
	})
	require.NoError(t, err)
	assert.True(t, outcome.Completed)
}

func TestFinishEvaluateBackfillsScores(t *testing.T) {
	store := NewStore()
	task := newTestTask("T1", types.FullStageSet())
	task.DestroyedMines = []types.Mine{
		{ID: "m1", Status: "destroyed"},
		{ID: "m2", Status: "destroyed"},
	}
	store.Register(task)

	s1, s2 := 0.95, 0.42
	evaluated := []types.Mine{
		{ID: "m1", EvaluationScore: &s1},
		{ID: "m2", EvaluationScore: &s2},
	}
	outcome, err := store.FinishStage("T1", types.StageEvaluate, &types.StageReport{
		EvaluatedMines: &evaluated,
	})
	require.NoError(t, err)
	assert.True(t, outcome.Completed)

	got, err := store.Get("T1")
	require.NoError(t, err)
	require.NotNil(t, got.DestroyedMines[0].EvaluationScore)
	assert.InDelta(t, 0.95, *got.DestroyedMines[0].EvaluationScore, 1e-9)
	require.NotNil(t, got.DestroyedMines[1].EvaluationScore)
	assert.InDelta(t, 0.42, *got.DestroyedMines[1].EvaluationScore, 1e-9)
}

func TestFinishEvaluateDestroyedListIsAuthoritative(t *testing.T) {
	store := NewStore()
	task := newTestTask("T1", types.FullStageSet())
	task.DestroyedMines = mines("old")
	store.Register(task)

	score := 0.8
	destroyed := []types.Mine{{ID: "m1", Status: "destroyed", EvaluationScore: &score}}
	_, err := store.FinishStage("T1", types.StageEvaluate, &types.StageReport{
		DestroyedMines: &destroyed,
		EvaluatedMines: &destroyed,
	})
	require.NoError(t, err)

	got, err := store.Get("T1")
	require.NoError(t, err)
	require.Len(t, got.DestroyedMines, 1)
	assert.Equal(t, "m1", got.DestroyedMines[0].ID)
}

func TestFinishStageUnknownStage(t *testing.T) {
	store := NewStore()
	store.Register(newTestTask("T1", types.FullStageSet()))

	_, err := store.FinishStage("T1", types.StageName("salvage"), &types.StageReport{})
	require.Error(t, err)
	assert.True(t, IsInvalidStage(err))
}

func TestFinishStageUnknownTask(t *testing.T) {
	store := NewStore()
	_, err := store.FinishStage("nope", types.StageSweep, &types.StageReport{})
	assert.True(t, IsNotFound(err))
}

// 全流程: 扫雷发现疑似, 查证确认, 灭雷销毁, 评估回填得分.
func TestFullMissionFlow(t *testing.T) {
	store := NewStore()
	store.Register(newTestTask("T1", types.FullStageSet()))

	require.NoError(t, store.BeginStage("T1", types.StageSweep))
	_, err := store.FinishStage("T1", types.StageSweep, &types.StageReport{
		SuspectMines: minesPtr("m1", "m2"),
	})
	require.NoError(t, err)
	assert.Equal(t, types.Pending(types.StageInvestigate), stageOf(t, store, "T1"))

	require.NoError(t, store.BeginStage("T1", types.StageInvestigate))
	confirmed := []types.Mine{{ID: "m1", Status: "confirmed"}}
	cleared := []types.Mine{{ID: "m2", Status: "cleared"}}
	_, err = store.FinishStage("T1", types.StageInvestigate, &types.StageReport{
		ConfirmedMines: &confirmed,
		ClearedMines:   &cleared,
	})
	require.NoError(t, err)
	assert.Equal(t, types.Pending(types.StageDestroy), stageOf(t, store, "T1"))

	require.NoError(t, store.BeginStage("T1", types.StageDestroy))
	destroyed := []types.Mine{{ID: "m1", Status: "destroyed"}}
	_, err = store.FinishStage("T1", types.StageDestroy, &types.StageReport{
		DestroyedMines: &destroyed,
	})
	require.NoError(t, err)
	assert.Equal(t, types.Pending(types.StageEvaluate), stageOf(t, store, "T1"))

	require.NoError(t, store.BeginStage("T1", types.StageEvaluate))
	score := 0.88
	evaluated := []types.Mine{{ID: "m1", EvaluationScore: &score}}
	outcome, err := store.FinishStage("T1", types.StageEvaluate, &types.StageReport{
		EvaluatedMines: &evaluated,
	})
	require.NoError(t, err)
	require.True(t, outcome.Completed)
	require.NotNil(t, outcome.Snapshot)
	assert.True(t, outcome.Snapshot.Stage.IsCompleted())

	got, err := store.Get("T1")
	require.NoError(t, err)
	require.NotNil(t, got.DestroyedMines[0].EvaluationScore)
	assert.InDelta(t, 0.88, *got.DestroyedMines[0].EvaluationScore, 1e-9)

	// 时间线: 4 次开始 + 4 次完成
	assert.Len(t, got.Timeline, 8)
}
