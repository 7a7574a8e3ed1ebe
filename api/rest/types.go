package rest

import (
	"fsl/mission-control/internal/pipeline"
	"fsl/mission-control/pkg/types"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StartTaskRequest is the body of POST /api/task/start. Pointer fields
// distinguish a missing key from a zero value.
type StartTaskRequest struct {
	TingCount  int             `json:"ting_count"`
	Tings      []types.Ting    `json:"tings"`
	TaskArea   *types.TaskArea `json:"task_area"`
	WorkflowID string          `json:"workflow_id"`
}

// StartTaskResponse carries the new task and its first stage payload.
type StartTaskResponse struct {
	TaskID       string              `json:"task_id"`
	Stage        types.StageState    `json:"stage"`
	SweepPayload *types.StagePayload `json:"sweep_payload"`
}

// TaskListResponse lists registered task identifiers.
type TaskListResponse struct {
	Tasks []string `json:"tasks"`
}

// ServiceCallsResponse is the audit log of one task.
type ServiceCallsResponse struct {
	TaskID       string              `json:"task_id"`
	ServiceCalls []types.ServiceCall `json:"service_calls"`
	TotalCalls   int                 `json:"total_calls"`
}

// OKResponse acknowledges a side-effecting call.
type OKResponse struct {
	Status string `json:"status"`
}

// PipelineExecuteRequest is the body of POST /api/pipeline/execute and
// /api/pipeline/route-plan.
type PipelineExecuteRequest struct {
	Point1   *pipeline.Point    `json:"point1"`
	Point2   *pipeline.Point    `json:"point2"`
	Obstacle *pipeline.Obstacle `json:"obstacle"`
}

// PipelineStepResponse wraps a single pipeline service call.
type PipelineStepResponse struct {
	Success         bool                `json:"success"`
	Result          map[string]any      `json:"result"`
	ServiceEndpoint *types.EndpointInfo `json:"service_endpoint"`
}

// NaviControlRequest is the body of POST /api/pipeline/navi-control.
type NaviControlRequest struct {
	Route []any `json:"route"`
}

// RecognizeRequest is the body of POST /api/pipeline/recognize.
type RecognizeRequest struct {
	ImagePath string `json:"image_path"`
}

// HitRequest is the body of POST /api/pipeline/hit.
type HitRequest struct {
	ID        any     `json:"id"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}
