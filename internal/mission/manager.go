// Package mission orchestrates task creation, stage dispatch data and
// collaborator service calls.
package mission

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ohler55/ojg/oj"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"fsl/mission-control/internal/config"
	"fsl/mission-control/internal/discovery"
	"fsl/mission-control/internal/task"
	"fsl/mission-control/internal/workflow"
	"fsl/mission-control/pkg/logger"
	"fsl/mission-control/pkg/types"
)

// ServicePlanArea 作业规划服务名
const ServicePlanArea = "planArea"

// ServiceAnalyzeTask 统计分析服务名
const ServiceAnalyzeTask = "analyzeTask"

// Manager owns the task registry and drives every collaborator
// interaction. All network calls happen outside the registry lock.
type Manager struct {
	store    *task.Store
	locator  *discovery.Locator
	stages   *workflow.Resolver
	services config.ServicesConfig
	mission  config.MissionConfig
	notifier *Notifier
	metrics  *Metrics
	client   *fasthttp.Client

	// injectable for tests
	newID func() string
	now   func() time.Time
}

// NewManager wires a manager from its collaborators.
func NewManager(cfg *config.Config, store *task.Store, locator *discovery.Locator, stages *workflow.Resolver, notifier *Notifier, metrics *Metrics) *Manager {
	return &Manager{
		store:    store,
		locator:  locator,
		stages:   stages,
		services: cfg.Services,
		mission:  cfg.Mission,
		notifier: notifier,
		metrics:  metrics,
		client:   &fasthttp.Client{},
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Defaults returns the built-in mission creation defaults.
func (m *Manager) Defaults() config.MissionConfig {
	return m.mission
}

// MetricsSummary returns the per-service outbound latency summary.
func (m *Manager) MetricsSummary() map[string]ServiceMetrics {
	return m.metrics.Summary()
}

// planRequest is the body sent to the area planning service.
type planRequest struct {
	TingCount int            `json:"ting_count"`
	TaskArea  types.TaskArea `json:"task_area"`
}

// CreateTask plans the work area, derives the workflow stages and
// registers a new task. On any planning failure no task is registered.
// Returns the registered snapshot and the composed sweep payload.
func (m *Manager) CreateTask(cfg types.TaskConfig) (*types.Task, *types.StagePayload, error) {
	tingCount, err := normalizeTingCount(cfg.Tings, cfg.TingCount)
	if err != nil {
		return nil, nil, err
	}

	planURL, endpointInfo := m.locator.Resolve(ServicePlanArea, m.services.PlanFallbackURL)
	planReq := planRequest{TingCount: tingCount, TaskArea: cfg.TaskArea}
	logger.Info("请求作业规划服务", zap.Int("tingCount", tingCount), zap.String("url", planURL))

	res, err := postJSON(m.client, planURL+"/planArea", planReq, m.services.PlanTimeout)
	m.metrics.Observe(ServicePlanArea, res.duration, err != nil || res.status != fasthttp.StatusOK)
	if err != nil {
		msg := fmt.Sprintf("无法连接到作业规划服务 (%s)，请确保服务已启动并注册", planURL)
		logger.Error(msg, zap.Error(err))
		return nil, nil, task.NewUpstreamUnavailableError(msg, err)
	}
	if res.status != fasthttp.StatusOK {
		return nil, nil, task.NewUpstreamError(fmt.Sprintf("planArea 调用失败: %s", res.body), nil)
	}

	var plan types.Plan
	if err := json.Unmarshal(res.body, &plan); err != nil {
		return nil, nil, task.NewUpstreamError("planArea 响应解析失败", err)
	}

	now := m.now()
	nowSec := float64(now.UnixNano()) / float64(time.Second)
	cfg.TaskID = m.newID()
	cfg.TingCount = tingCount

	t := &types.Task{
		TaskID:         cfg.TaskID,
		Stage:          types.Pending(types.StageSweep),
		Config:         cfg,
		Plan:           plan,
		RandomSeed:     uint32(now.UnixMilli() & 0xFFFFFFFF),
		WorkflowID:     cfg.WorkflowID,
		WorkflowStages: m.stages.Stages(cfg.WorkflowID),
		Tings:          types.CloneTings(cfg.Tings),
		WorkZones:      plan.Clone().WorkZones,
		CreatedAt:      nowSec,
		UpdatedAt:      nowSec,
		Timeline: []types.TimelineEvent{
			{Stage: types.DisplayStage("created"), Timestamp: nowSec, Message: "任务已创建"},
			{Stage: types.DisplayStage("plan"), Timestamp: nowSec, Message: "完成作业区划分"},
		},
		ServiceCalls: []types.ServiceCall{
			{
				ServiceName:  ServicePlanArea,
				Endpoint:     "/planArea",
				Method:       fasthttp.MethodPost,
				Timestamp:    nowSec,
				Request:      planReq,
				Response:     plan,
				StatusCode:   res.status,
				DurationMS:   float64(res.duration.Microseconds()) / 1000,
				EndpointInfo: endpointInfo,
			},
		},
	}

	snapshot := m.store.Register(t)
	payload, err := task.ComposePayload(snapshot, types.StageSweep)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("任务已创建",
		zap.String("taskId", snapshot.TaskID),
		zap.Int("workZones", len(snapshot.WorkZones)),
		zap.Any("stages", snapshot.WorkflowStages.Names()))
	return snapshot, payload, nil
}

// StageInput composes the input payload for a stage, enforcing its data
// preconditions.
func (m *Manager) StageInput(taskID string, stage types.StageName) (*types.StagePayload, error) {
	return m.store.ComposePayloadFor(taskID, stage)
}

// BeginStage marks a stage running.
func (m *Manager) BeginStage(taskID string, stage types.StageName) error {
	return m.store.BeginStage(taskID, stage)
}

// Progress merges an incremental worker report.
func (m *Manager) Progress(taskID string, stage types.StageName, report *types.StageReport) error {
	return m.store.UpdateProgress(taskID, stage, report)
}

// StageResultResponse is returned to the worker that posted a result.
// NextPayload is present whenever another stage is pending.
type StageResultResponse struct {
	TaskID      string              `json:"task_id"`
	Stage       types.StageState    `json:"stage"`
	Status      string              `json:"status,omitempty"`
	Message     string              `json:"message,omitempty"`
	NextPayload *types.StagePayload `json:"next_payload,omitempty"`
}

// StageResult ingests a worker's final report. A worker-signalled error
// fails the stage; otherwise the state machine decides the next stage
// and, on completion, the analysis notification is enqueued.
func (m *Manager) StageResult(taskID string, stage types.StageName, report *types.StageReport) (*StageResultResponse, error) {
	if report.IsError() {
		message := report.Message
		if message == "" {
			message = "阶段执行失败"
		}
		logger.Error("阶段执行失败",
			zap.String("taskId", taskID),
			zap.String("stage", string(stage)),
			zap.String("message", message))
		if err := m.store.FailStage(taskID, stage, message); err != nil {
			return nil, err
		}
		return &StageResultResponse{TaskID: taskID, Stage: types.Failed(stage), Status: "error", Message: message}, nil
	}

	outcome, err := m.store.FinishStage(taskID, stage, report)
	if err != nil {
		return nil, err
	}

	response := &StageResultResponse{TaskID: taskID, Stage: outcome.Stage}
	if !outcome.Completed && outcome.Stage.Status == types.StatusPending {
		snapshot, err := m.store.Get(taskID)
		if err != nil {
			return nil, err
		}
		payload, err := task.ComposePayload(snapshot, outcome.Stage.Name)
		if err != nil {
			return nil, err
		}
		response.NextPayload = payload
	}

	if outcome.Completed {
		m.notifier.Enqueue(outcome.Snapshot)
	}
	return response, nil
}

// Status returns a full task snapshot.
func (m *Manager) Status(taskID string) (*types.Task, error) {
	return m.store.Get(taskID)
}

// TaskIDs lists all registered task identifiers.
func (m *Manager) TaskIDs() []string {
	return m.store.TaskIDs()
}

// Statistics calls the analysis service on demand with the task's
// current state and returns its verdict.
func (m *Manager) Statistics(taskID string) (any, error) {
	snapshot, err := m.store.Get(taskID)
	if err != nil {
		return nil, err
	}

	analyzeURL, endpointInfo := m.locator.Resolve(ServiceAnalyzeTask, m.services.AnalyzeFallbackURL)
	payload := analyzePayload(snapshot)
	logger.Info("请求统计分析服务", zap.String("taskId", taskID), zap.String("url", analyzeURL))

	res, err := postJSON(m.client, analyzeURL+"/analyze", payload, m.services.StatsTimeout)
	m.metrics.Observe(ServiceAnalyzeTask, res.duration, err != nil || res.status != fasthttp.StatusOK)
	if err != nil {
		return nil, task.NewUpstreamError(fmt.Sprintf("统计服务不可用: %v", err), err)
	}

	call := types.ServiceCall{
		ServiceName:  ServiceAnalyzeTask,
		Endpoint:     "/analyze",
		Method:       fasthttp.MethodPost,
		Timestamp:    float64(m.now().UnixNano()) / float64(time.Second),
		Request:      payload,
		StatusCode:   res.status,
		DurationMS:   float64(res.duration.Microseconds()) / 1000,
		EndpointInfo: endpointInfo,
	}

	if res.status != fasthttp.StatusOK {
		call.Error = string(res.body)
		_ = m.store.RecordServiceCall(taskID, call)
		return nil, task.NewUpstreamError(fmt.Sprintf("统计服务调用失败: %s", res.body), nil)
	}

	result, err := oj.Parse(res.body)
	if err != nil {
		return nil, task.NewUpstreamError("统计服务响应解析失败", err)
	}
	call.Response = result
	_ = m.store.RecordServiceCall(taskID, call)
	return result, nil
}

// analyzeRequest mirrors the task state fields the analysis service
// consumes.
type analyzeRequest struct {
	TaskID         string                `json:"task_id"`
	Stage          types.StageState      `json:"stage"`
	Tings          []types.Ting          `json:"tings"`
	SuspectMines   []types.Mine          `json:"suspect_mines"`
	ConfirmedMines []types.Mine          `json:"confirmed_mines"`
	ClearedMines   []types.Mine          `json:"cleared_mines"`
	DestroyedMines []types.Mine          `json:"destroyed_mines"`
	EvaluatedMines []types.Mine          `json:"evaluated_mines"`
	Tracks         []types.TrackPoint    `json:"tracks"`
	Timeline       []types.TimelineEvent `json:"timeline"`
	CreatedAt      float64               `json:"created_at"`
	UpdatedAt      float64               `json:"updated_at"`
}

func analyzePayload(t *types.Task) analyzeRequest {
	return analyzeRequest{
		TaskID:         t.TaskID,
		Stage:          t.Stage,
		Tings:          t.Tings,
		SuspectMines:   t.SuspectMines,
		ConfirmedMines: t.ConfirmedMines,
		ClearedMines:   t.ClearedMines,
		DestroyedMines: t.DestroyedMines,
		EvaluatedMines: t.EvaluatedMines,
		Tracks:         t.Tracks,
		Timeline:       t.Timeline,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func normalizeTingCount(tings []types.Ting, requested int) (int, error) {
	if requested <= 0 {
		requested = len(tings)
	}
	if requested <= 0 {
		return 0, task.NewBadRequestError("至少需要一个艇")
	}
	if len(tings) < requested {
		return 0, task.NewBadRequestError("提供的艇数量不足")
	}
	return requested, nil
}
