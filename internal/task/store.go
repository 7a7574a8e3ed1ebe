// Package task implements the mission task registry and its stage
// transition engine.
package task

import (
	"sync"
	"time"

	"fsl/mission-control/pkg/types"
)

// Store is the in-memory task registry. A single mutex guards every
// read-modify-write sequence so stage decisions never observe a
// half-updated task. Outbound network calls are made by callers outside
// the lock.
type Store struct {
	tasks map[string]*types.Task
	mu    sync.Mutex

	// now is injectable for tests.
	now func() time.Time
}

// NewStore creates an empty task registry.
func NewStore() *Store {
	return &Store{
		tasks: make(map[string]*types.Task),
		now:   time.Now,
	}
}

// clock returns the current wall-clock time in epoch seconds.
func (s *Store) clock() float64 {
	return float64(s.now().UnixNano()) / float64(time.Second)
}

// Register adds a freshly created task to the registry. The store takes
// ownership of the instance; callers must use the returned snapshot.
func (s *Store) Register(task *types.Task) *types.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[task.TaskID] = task
	return task.Clone()
}

// Get returns a deep-copied snapshot of a task.
func (s *Store) Get(taskID string) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.getLocked(taskID)
	if err != nil {
		return nil, err
	}
	return task.Clone(), nil
}

// TaskIDs lists the identifiers of all registered tasks.
func (s *Store) TaskIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of registered tasks.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Store) getLocked(taskID string) (*types.Task, error) {
	task, ok := s.tasks[taskID]
	if !ok {
		return nil, NewNotFoundError(taskID)
	}
	return task, nil
}

// recordEventLocked appends a timeline entry and refreshes UpdatedAt.
func (s *Store) recordEventLocked(task *types.Task, stage, message string) {
	now := s.clock()
	task.Timeline = append(task.Timeline, types.TimelineEvent{
		Stage:     types.DisplayStage(stage),
		Timestamp: now,
		Message:   message,
	})
	task.UpdatedAt = now
}

// BeginStage marks a stage as running. No precondition on the prior
// stage: drivers are trusted to invoke stages in order, and re-driving a
// failed stage re-enters running through the same path.
func (s *Store) BeginStage(taskID string, stage types.StageName) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.getLocked(taskID)
	if err != nil {
		return err
	}

	task.Stage = types.Running(stage)
	s.recordEventLocked(task, string(stage), types.DisplayStage(string(stage))+" 阶段开始")
	return nil
}

// UpdateProgress merges an in-flight worker's incremental report into the
// task. Only fields present in the report are touched; tracks append,
// mine lists replace. Re-affirms the running state.
func (s *Store) UpdateProgress(taskID string, stage types.StageName, report *types.StageReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.getLocked(taskID)
	if err != nil {
		return err
	}

	if report.Tings != nil {
		task.Tings = types.CloneTings(*report.Tings)
	}
	if len(report.Tracks) > 0 {
		task.Tracks = append(task.Tracks, report.Tracks...)
	}
	if report.SuspectMines != nil {
		task.SuspectMines = types.CloneMines(*report.SuspectMines)
	}
	if report.ConfirmedMines != nil {
		task.ConfirmedMines = types.CloneMines(*report.ConfirmedMines)
	}
	if report.ClearedMines != nil {
		task.ClearedMines = types.CloneMines(*report.ClearedMines)
	}
	if report.DestroyedMines != nil {
		task.DestroyedMines = types.CloneMines(*report.DestroyedMines)
	}
	if report.EvaluatedMines != nil {
		task.EvaluatedMines = types.CloneMines(*report.EvaluatedMines)
		backfillEvaluationScores(task.DestroyedMines, task.EvaluatedMines)
	}

	task.Stage = types.Running(stage)
	task.UpdatedAt = s.clock()
	return nil
}

// FailStage marks a stage as failed. Task data is kept so an external
// driver may re-drive the stage via BeginStage.
func (s *Store) FailStage(taskID string, stage types.StageName, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.getLocked(taskID)
	if err != nil {
		return err
	}

	if message == "" {
		message = "未知错误"
	}
	task.Stage = types.Failed(stage)
	s.recordEventLocked(task, string(stage), types.DisplayStage(string(stage))+" 阶段失败: "+message)
	return nil
}

// RecordServiceCall appends an outbound call record to a task's audit log.
func (s *Store) RecordServiceCall(taskID string, call types.ServiceCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.getLocked(taskID)
	if err != nil {
		return err
	}

	task.ServiceCalls = append(task.ServiceCalls, call)
	task.UpdatedAt = s.clock()
	return nil
}

// PruneFinished removes completed or failed tasks whose last update is
// older than maxAge, returning the number of tasks removed. Retention is
// unbounded unless a caller wires this to a schedule.
func (s *Store) PruneFinished(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock() - maxAge.Seconds()
	removed := 0
	for id, task := range s.tasks {
		if task.Stage.IsTerminal() && task.UpdatedAt < cutoff {
			delete(s.tasks, id)
			removed++
		}
	}
	return removed
}
