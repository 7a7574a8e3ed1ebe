package mission

import (
	"fmt"
	"time"

	"github.com/ohler55/ojg/oj"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"fsl/mission-control/internal/task"
	"fsl/mission-control/pkg/logger"
)

// ControllerProxy forwards workflow management requests to the
// controller's DAG API.
type ControllerProxy struct {
	baseURL string
	timeout time.Duration
	client  *fasthttp.Client
}

// NewControllerProxy creates a proxy against the controller base URL.
func NewControllerProxy(baseURL string, timeout time.Duration) *ControllerProxy {
	return &ControllerProxy{
		baseURL: baseURL,
		timeout: timeout,
		client:  &fasthttp.Client{},
	}
}

// ProxyError carries a controller response that was not 200 so callers
// can pass its status straight through.
type ProxyError struct {
	Status int
	Body   string
}

// Error implements the error interface.
func (e *ProxyError) Error() string {
	return fmt.Sprintf("controller 返回状态码 %d: %s", e.Status, e.Body)
}

// ListWorkflows returns the controller's workflow definitions.
func (p *ControllerProxy) ListWorkflows() (any, error) {
	return p.get(p.baseURL + "/v1/dag/workflows")
}

// ListRuns returns the runs of one workflow.
func (p *ControllerProxy) ListRuns(workflowID string) (any, error) {
	return p.get(fmt.Sprintf("%s/v1/dag/workflows/%s/runs", p.baseURL, workflowID))
}

// RunStatus returns the status of one workflow run.
func (p *ControllerProxy) RunStatus(runID string) (any, error) {
	return p.get(fmt.Sprintf("%s/v1/dag/runs/%s/status", p.baseURL, runID))
}

// TriggerRun starts a workflow run with an optional body.
func (p *ControllerProxy) TriggerRun(workflowID string, body map[string]any) (any, error) {
	if body == nil {
		body = map[string]any{}
	}
	res, err := postJSON(p.client, fmt.Sprintf("%s/v1/dag/workflows/%s/run", p.baseURL, workflowID), body, p.timeout)
	if err != nil {
		logger.Error("触发工作流运行失败", zap.Error(err))
		return nil, task.NewUpstreamError(fmt.Sprintf("请求 Controller 失败: %v", err), err)
	}
	return p.decode(res)
}

func (p *ControllerProxy) get(url string) (any, error) {
	res, err := getJSON(p.client, url, p.timeout)
	if err != nil {
		logger.Error("请求 Controller 失败", zap.String("url", url), zap.Error(err))
		return nil, task.NewUpstreamError(fmt.Sprintf("请求 Controller 失败: %v", err), err)
	}
	return p.decode(res)
}

func (p *ControllerProxy) decode(res httpResult) (any, error) {
	if res.status != fasthttp.StatusOK {
		return nil, &ProxyError{Status: res.status, Body: string(res.body)}
	}
	parsed, err := oj.Parse(res.body)
	if err != nil {
		return nil, task.NewUpstreamError("Controller 响应解析失败", err)
	}
	return parsed, nil
}
