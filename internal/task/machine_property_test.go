// Property tests for the stage decision engine: for any workflow stage
// subset and any findings, a mission always moves forward and terminates.
package task

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"fsl/mission-control/pkg/types"
)

func stageSetFrom(investigate, destroy, evaluate bool) types.StageSet {
	set := types.StageSet{types.StageSweep: true}
	if investigate {
		set[types.StageInvestigate] = true
	}
	if destroy {
		set[types.StageDestroy] = true
	}
	if evaluate {
		set[types.StageEvaluate] = true
	}
	return set
}

func genMines(n int, status string) []types.Mine {
	out := make([]types.Mine, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, types.Mine{ID: fmt.Sprintf("m-%d", i), Status: status})
	}
	return out
}

func TestSweepDecisionProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	// Property: 扫雷结束后只可能进入查证/灭雷/完成三种状态之一
	properties.Property("sweep lands in a legal successor state", prop.ForAll(
		func(suspects, confirmed int, investigate, destroy, evaluate bool) bool {
			store := NewStore()
			store.Register(newTestTask("T1", stageSetFrom(investigate, destroy, evaluate)))

			suspectList := genMines(suspects, "suspect")
			confirmedList := genMines(confirmed, "confirmed")
			_, err := store.FinishStage("T1", types.StageSweep, &types.StageReport{
				SuspectMines:   &suspectList,
				ConfirmedMines: &confirmedList,
			})
			if err != nil {
				return false
			}

			got, err := store.Get("T1")
			if err != nil {
				return false
			}
			switch got.Stage {
			case types.Pending(types.StageInvestigate):
				return investigate
			case types.Pending(types.StageDestroy):
				return destroy && !investigate
			case types.Completed():
				return true
			default:
				return false
			}
		},
		gen.IntRange(0, 10),
		gen.IntRange(0, 10),
		gen.Bool(),
		gen.Bool(),
		gen.Bool(),
	))

	// Property: 查证阶段启用时扫雷一律交由查证决断
	properties.Property("investigate always follows sweep when enabled", prop.ForAll(
		func(suspects int, destroy bool) bool {
			store := NewStore()
			store.Register(newTestTask("T1", stageSetFrom(true, destroy, false)))

			suspectList := genMines(suspects, "suspect")
			_, err := store.FinishStage("T1", types.StageSweep, &types.StageReport{
				SuspectMines: &suspectList,
			})
			if err != nil {
				return false
			}
			got, err := store.Get("T1")
			if err != nil {
				return false
			}
			return got.Stage == types.Pending(types.StageInvestigate)
		},
		gen.IntRange(0, 10),
		gen.Bool(),
	))

	// Property: 只有灭雷时疑似目标全部提升为确认目标
	properties.Property("suspect promotion preserves count", prop.ForAll(
		func(suspects int) bool {
			if suspects == 0 {
				return true
			}
			store := NewStore()
			store.Register(newTestTask("T1", stageSetFrom(false, true, false)))

			suspectList := genMines(suspects, "suspect")
			_, err := store.FinishStage("T1", types.StageSweep, &types.StageReport{
				SuspectMines: &suspectList,
			})
			if err != nil {
				return false
			}
			got, err := store.Get("T1")
			if err != nil {
				return false
			}
			if len(got.SuspectMines) != 0 || len(got.ConfirmedMines) != suspects {
				return false
			}
			for _, mine := range got.ConfirmedMines {
				if mine.Status != "confirmed" {
					return false
				}
			}
			return got.Stage == types.Pending(types.StageDestroy)
		},
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t)
}

func TestMissionTerminationProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	// Property: 任意阶段组合与任意发现数量下, 任务在有限步内完成
	properties.Property("mission always terminates", prop.ForAll(
		func(suspects, confirmedRatio, destroyedRatio int, investigate, destroy, evaluate bool) bool {
			store := NewStore()
			store.Register(newTestTask("T1", stageSetFrom(investigate, destroy, evaluate)))

			suspectList := genMines(suspects, "suspect")
			if _, err := store.FinishStage("T1", types.StageSweep, &types.StageReport{
				SuspectMines: &suspectList,
			}); err != nil {
				return false
			}

			for step := 0; step < 4; step++ {
				got, err := store.Get("T1")
				if err != nil {
					return false
				}
				if got.Stage.IsCompleted() {
					return true
				}
				if got.Stage.Status != types.StatusPending {
					return false
				}

				var report types.StageReport
				switch got.Stage.Name {
				case types.StageInvestigate:
					confirmed := genMines(len(got.SuspectMines)*confirmedRatio/10, "confirmed")
					report.ConfirmedMines = &confirmed
				case types.StageDestroy:
					destroyed := genMines(len(got.ConfirmedMines)*destroyedRatio/10, "destroyed")
					report.DestroyedMines = &destroyed
				case types.StageEvaluate:
					evaluated := types.CloneMines(got.DestroyedMines)
					report.EvaluatedMines = &evaluated
				default:
					return false
				}
				if _, err := store.FinishStage("T1", got.Stage.Name, &report); err != nil {
					return false
				}
			}

			got, err := store.Get("T1")
			return err == nil && got.Stage.IsCompleted()
		},
		gen.IntRange(0, 10),
		gen.IntRange(0, 10),
		gen.IntRange(0, 10),
		gen.Bool(),
		gen.Bool(),
		gen.Bool(),
	))

	// Property: 轨迹只增不减
	properties.Property("tracks only grow", prop.ForAll(
		func(batches []int) bool {
			store := NewStore()
			store.Register(newTestTask("T1", types.FullStageSet()))

			total := 0
			for _, n := range batches {
				tracks := make([]types.TrackPoint, n)
				if err := store.UpdateProgress("T1", types.StageSweep, &types.StageReport{Tracks: tracks}); err != nil {
					return false
				}
				total += n
				got, err := store.Get("T1")
				if err != nil || len(got.Tracks) != total {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 5)),
	))

	properties.TestingRun(t)
}
