package task

import (
	"fsl/mission-control/pkg/types"
)

// Outcome describes the state machine's decision after a stage finished.
// When Completed is true, Snapshot carries the full task state for the
// completion hook; the hook itself runs outside the registry lock.
type Outcome struct {
	Stage     types.StageState
	Completed bool
	Snapshot  *types.Task
}

// FinishStage ingests a stage's final result and decides the task's next
// stage. The whole decision executes under the registry lock; the
// configured workflow stages steer every branch so any subset of
// {investigate, destroy, evaluate} still reaches completion.
func (s *Store) FinishStage(taskID string, stage types.StageName, report *types.StageReport) (*Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.getLocked(taskID)
	if err != nil {
		return nil, err
	}

	switch stage {
	case types.StageSweep:
		s.finishSweep(task, report)
	case types.StageInvestigate:
		s.finishInvestigate(task, report)
	case types.StageDestroy:
		s.finishDestroy(task, report)
	case types.StageEvaluate:
		s.finishEvaluate(task, report)
	default:
		return nil, NewInvalidStageError(string(stage))
	}

	outcome := &Outcome{
		Stage:     task.Stage,
		Completed: task.Stage.IsCompleted(),
	}
	if outcome.Completed {
		outcome.Snapshot = task.Clone()
	}
	return outcome, nil
}

// finishSweep replaces the mine classification lists from the sweep
// result and picks the next stage. Priority order:
//  1. investigate configured → investigate (it decides the follow-up,
//     even with zero suspects)
//  2. confirmed mines found → destroy if configured, else done
//  3. suspects found with only destroy configured → promote suspects to
//     confirmed, then destroy
//  4. otherwise → done
func (s *Store) finishSweep(task *types.Task, report *types.StageReport) {
	task.SuspectMines = types.CloneMines(report.SuspectMinesOrEmpty())
	task.ConfirmedMines = types.CloneMines(report.ConfirmedMinesOrEmpty())
	appendTracks(task, report.Tracks)
	if report.Tings != nil {
		task.Tings = types.CloneTings(*report.Tings)
	}

	hasInvestigate := task.WorkflowStages.Has(types.StageInvestigate)
	hasDestroy := task.WorkflowStages.Has(types.StageDestroy)
	suspectsAvailable := len(task.SuspectMines) > 0
	confirmedAvailable := len(task.ConfirmedMines) > 0

	switch {
	case hasInvestigate:
		// 有无疑似都交给查证阶段决定后续
		task.Stage = types.Pending(types.StageInvestigate)
	case confirmedAvailable:
		if hasDestroy {
			task.Stage = types.Pending(types.StageDestroy)
		} else {
			task.Stage = types.Completed()
		}
	case suspectsAvailable && hasDestroy:
		promoted := make([]types.Mine, 0, len(task.SuspectMines))
		for _, mine := range task.SuspectMines {
			clone := mine.Clone()
			clone.Status = "confirmed"
			promoted = append(promoted, clone)
		}
		task.ConfirmedMines = append(task.ConfirmedMines, promoted...)
		task.SuspectMines = nil
		task.Stage = types.Pending(types.StageDestroy)
	default:
		// Suspects with no follow-up stage, or nothing found at all.
		task.Stage = types.Completed()
	}

	s.recordEventLocked(task, string(types.StageSweep), types.DisplayStage(string(types.StageSweep))+" 完成")
}

// finishInvestigate replaces the confirmed and cleared lists. When
// destroy is configured the task always proceeds there, with or without
// remaining confirmed mines: the destroy stage decides for itself.
func (s *Store) finishInvestigate(task *types.Task, report *types.StageReport) {
	task.ConfirmedMines = types.CloneMines(report.ConfirmedMinesOrEmpty())
	task.ClearedMines = types.CloneMines(report.ClearedMinesOrEmpty())
	appendTracks(task, report.Tracks)
	if report.Tings != nil {
		task.Tings = types.CloneTings(*report.Tings)
	}

	if task.WorkflowStages.Has(types.StageDestroy) {
		task.Stage = types.Pending(types.StageDestroy)
	} else {
		task.Stage = types.Completed()
	}
	s.recordEventLocked(task, string(types.StageInvestigate), types.DisplayStage(string(types.StageInvestigate))+" 完成")
}

// finishDestroy replaces the destroyed list. Evaluation only runs when
// something was actually destroyed and the stage is configured.
func (s *Store) finishDestroy(task *types.Task, report *types.StageReport) {
	task.DestroyedMines = types.CloneMines(report.DestroyedMinesOrEmpty())
	appendTracks(task, report.Tracks)
	if report.Tings != nil {
		task.Tings = types.CloneTings(*report.Tings)
	}

	if len(task.DestroyedMines) > 0 && task.WorkflowStages.Has(types.StageEvaluate) {
		task.EvaluatedMines = nil
		task.Stage = types.Pending(types.StageEvaluate)
	} else {
		task.Stage = types.Completed()
	}
	s.recordEventLocked(task, string(types.StageDestroy), types.DisplayStage(string(types.StageDestroy))+" 完成")
}

// finishEvaluate replaces the evaluated list and always completes the
// task. A destroyed list in the result is authoritative; otherwise the
// evaluation scores are back-filled onto the existing destroyed mines.
func (s *Store) finishEvaluate(task *types.Task, report *types.StageReport) {
	task.EvaluatedMines = types.CloneMines(report.EvaluatedMinesOrEmpty())

	destroyed := report.DestroyedMinesOrEmpty()
	if len(destroyed) > 0 {
		task.DestroyedMines = types.CloneMines(destroyed)
	} else {
		backfillEvaluationScores(task.DestroyedMines, task.EvaluatedMines)
	}
	appendTracks(task, report.Tracks)
	if report.Tings != nil {
		task.Tings = types.CloneTings(*report.Tings)
	}

	task.Stage = types.Completed()
	s.recordEventLocked(task, string(types.StageEvaluate), types.DisplayStage(string(types.StageEvaluate))+" 完成")
}

// appendTracks extends the cumulative track log. Tracks only ever grow.
func appendTracks(task *types.Task, tracks []types.TrackPoint) {
	if len(tracks) == 0 {
		return
	}
	task.Tracks = append(task.Tracks, tracks...)
}

// backfillEvaluationScores copies evaluation scores onto destroyed mines
// by matching identifiers.
func backfillEvaluationScores(destroyed, evaluated []types.Mine) {
	if len(destroyed) == 0 || len(evaluated) == 0 {
		return
	}
	scores := make(map[string]*float64, len(evaluated))
	for _, mine := range evaluated {
		if mine.ID != "" && mine.EvaluationScore != nil {
			scores[mine.ID] = mine.EvaluationScore
		}
	}
	for i := range destroyed {
		if score, ok := scores[destroyed[i].ID]; ok {
			value := *score
			destroyed[i].EvaluationScore = &value
		}
	}
}
