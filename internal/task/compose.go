package task

import (
	"fsl/mission-control/pkg/types"
)

// ComposePayload builds the request document handed to a worker stage.
// Every embedded collection is a defensive deep copy so worker-side
// serialization can never alias the task's live state. Only the sweep
// stage carries the work-zone partition and full plan.
func ComposePayload(task *types.Task, stage types.StageName) (*types.StagePayload, error) {
	payload := &types.StagePayload{
		TaskID:         task.TaskID,
		Stage:          stage,
		RandomSeed:     task.RandomSeed,
		Tings:          types.CloneTings(task.Tings),
		SuspectMines:   types.CloneMines(task.SuspectMines),
		ConfirmedMines: types.CloneMines(task.ConfirmedMines),
		DestroyedMines: types.CloneMines(task.DestroyedMines),
		EvaluatedMines: types.CloneMines(task.EvaluatedMines),
	}

	switch stage {
	case types.StageSweep:
		if task.WorkZones != nil {
			payload.WorkZones = make([]types.WorkZone, len(task.WorkZones))
			copy(payload.WorkZones, task.WorkZones)
		}
		plan := task.Plan.Clone()
		payload.Plan = &plan
	case types.StageInvestigate, types.StageDestroy, types.StageEvaluate:
	default:
		return nil, NewInvalidStageError(string(stage))
	}

	return payload, nil
}

// ComposePayloadFor resolves the stage's input payload from the store
// with the stage preconditions the input endpoint enforces: investigate
// needs suspects, destroy needs confirmed mines, evaluate needs
// destroyed mines.
func (s *Store) ComposePayloadFor(taskID string, stage types.StageName) (*types.StagePayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.getLocked(taskID)
	if err != nil {
		return nil, err
	}

	switch stage {
	case types.StageInvestigate:
		if len(task.SuspectMines) == 0 {
			return nil, NewConflictError("当前没有疑似水雷")
		}
	case types.StageDestroy:
		if len(task.ConfirmedMines) == 0 {
			return nil, NewConflictError("当前没有确认水雷")
		}
	case types.StageEvaluate:
		if len(task.DestroyedMines) == 0 {
			return nil, NewConflictError("当前没有已销毁水雷")
		}
	}

	return ComposePayload(task, stage)
}
