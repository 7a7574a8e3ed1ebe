// Package types holds the shared data model of the mission control
// service: tasks, stages, mines, platforms and wire payloads.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StageName identifies one of the four mission stages.
type StageName string

const (
	// StageSweep 扫雷阶段
	StageSweep StageName = "sweep"
	// StageInvestigate 查证阶段
	StageInvestigate StageName = "investigate"
	// StageDestroy 灭雷阶段
	StageDestroy StageName = "destroy"
	// StageEvaluate 评估阶段
	StageEvaluate StageName = "evaluate"
)

// AllStages lists the stages in execution order.
var AllStages = []StageName{StageSweep, StageInvestigate, StageDestroy, StageEvaluate}

// ParseStageName validates a stage name from the wire.
func ParseStageName(s string) (StageName, error) {
	switch StageName(s) {
	case StageSweep, StageInvestigate, StageDestroy, StageEvaluate:
		return StageName(s), nil
	}
	return "", fmt.Errorf("未知阶段: %s", s)
}

// StageStatus is the per-stage lifecycle phase.
type StageStatus string

const (
	// StatusPending 待执行
	StatusPending StageStatus = "pending"
	// StatusRunning 执行中
	StatusRunning StageStatus = "running"
	// StatusFailed 已失败
	StatusFailed StageStatus = "failed"
)

// StageState is a task's compound state: a stage name paired with its
// status, or the terminal completed state with no stage. Its wire form
// is "<stage>_<status>" or the literal "completed".
type StageState struct {
	Name   StageName
	Status StageStatus
}

// Pending returns the pending state for a stage.
func Pending(name StageName) StageState {
	return StageState{Name: name, Status: StatusPending}
}

// Running returns the running state for a stage.
func Running(name StageName) StageState {
	return StageState{Name: name, Status: StatusRunning}
}

// Failed returns the failed state for a stage.
func Failed(name StageName) StageState {
	return StageState{Name: name, Status: StatusFailed}
}

// Completed returns the terminal completed state.
func Completed() StageState {
	return StageState{}
}

// IsCompleted reports whether the task reached its terminal success state.
func (s StageState) IsCompleted() bool {
	return s.Name == ""
}

// IsTerminal reports whether no further stage activity is expected
// without outside intervention.
func (s StageState) IsTerminal() bool {
	return s.IsCompleted() || s.Status == StatusFailed
}

// String renders the compound wire form.
func (s StageState) String() string {
	if s.IsCompleted() {
		return "completed"
	}
	return string(s.Name) + "_" + string(s.Status)
}

// ParseStageState parses the compound wire form.
func ParseStageState(raw string) (StageState, error) {
	if raw == "completed" {
		return Completed(), nil
	}
	idx := strings.LastIndex(raw, "_")
	if idx <= 0 {
		return StageState{}, fmt.Errorf("非法状态: %s", raw)
	}
	name, err := ParseStageName(raw[:idx])
	if err != nil {
		return StageState{}, fmt.Errorf("非法状态: %s", raw)
	}
	switch status := StageStatus(raw[idx+1:]); status {
	case StatusPending, StatusRunning, StatusFailed:
		return StageState{Name: name, Status: status}, nil
	default:
		return StageState{}, fmt.Errorf("非法状态: %s", raw)
	}
}

// MarshalJSON encodes the state as its wire string.
func (s StageState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes the wire string form.
func (s *StageState) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	state, err := ParseStageState(raw)
	if err != nil {
		return err
	}
	*s = state
	return nil
}

// StageSet is the set of stages a workflow definition enables. Sweep is
// always part of a mission regardless of the set's contents.
type StageSet map[StageName]bool

// DefaultStageSet enables only the sweep stage.
func DefaultStageSet() StageSet {
	return StageSet{StageSweep: true}
}

// FullStageSet enables all four stages.
func FullStageSet() StageSet {
	set := make(StageSet, len(AllStages))
	for _, stage := range AllStages {
		set[stage] = true
	}
	return set
}

// Has reports whether a stage is enabled. Sweep is unconditional.
func (s StageSet) Has(name StageName) bool {
	if name == StageSweep {
		return true
	}
	return s[name]
}

// Clone returns an independent copy.
func (s StageSet) Clone() StageSet {
	if s == nil {
		return nil
	}
	out := make(StageSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Names lists the enabled stages in execution order.
func (s StageSet) Names() []StageName {
	out := make([]StageName, 0, len(AllStages))
	for _, stage := range AllStages {
		if s.Has(stage) {
			out = append(out, stage)
		}
	}
	return out
}

// MarshalJSON encodes the set as an ordered stage name list.
func (s StageSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// UnmarshalJSON decodes a stage name list.
func (s *StageSet) UnmarshalJSON(data []byte) error {
	var names []StageName
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	set := make(StageSet, len(names))
	for _, name := range names {
		set[name] = true
	}
	*s = set
	return nil
}

// stageDisplay 阶段中文名
var stageDisplay = map[string]string{
	"created":     "任务",
	"plan":        "作业规划",
	"sweep":       "扫雷",
	"investigate": "查证",
	"destroy":     "灭雷",
	"evaluate":    "评估",
	"completed":   "完成",
}

// DisplayStage maps a stage token to its Chinese display name. Compound
// tokens such as "sweep_running" resolve by their stage part; unknown
// tokens pass through unchanged.
func DisplayStage(stage string) string {
	if name, ok := stageDisplay[stage]; ok {
		return name
	}
	if idx := strings.Index(stage, "_"); idx > 0 {
		if name, ok := stageDisplay[stage[:idx]]; ok {
			return name
		}
	}
	return stage
}
