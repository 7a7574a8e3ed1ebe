package pipeline

import (
	"fmt"
)

// StepState is one executed step of the decision chain.
type StepState struct {
	Name      string         `json:"name"`
	Status    string         `json:"status"`
	StartTime float64        `json:"start_time"`
	EndTime   float64        `json:"end_time"`
	Result    map[string]any `json:"result,omitempty"`
}

// WorkflowStatus tracks progress through the decision chain.
type WorkflowStatus struct {
	Step       int         `json:"step"`
	TotalSteps int         `json:"total_steps"`
	Status     string      `json:"status"`
	Steps      []StepState `json:"steps"`
	TotalTime  float64     `json:"total_time,omitempty"`
}

// ExecuteResult is the full outcome of one pipeline execution.
type ExecuteResult struct {
	Success          bool                      `json:"success"`
	Workflow         *WorkflowStatus           `json:"workflow"`
	Results          map[string]map[string]any `json:"results"`
	Errors           map[string]string         `json:"errors"`
	ServiceEndpoints map[string]any            `json:"service_endpoints"`
}

func (w *WorkflowStatus) beginStep(name string) {
	w.Steps = append(w.Steps, StepState{
		Name:      name,
		Status:    "running",
		StartTime: epochSeconds(),
	})
}

func (w *WorkflowStatus) endStep(result map[string]any) bool {
	last := &w.Steps[len(w.Steps)-1]
	last.EndTime = epochSeconds()
	last.Result = result
	if boolField(result, "success") {
		last.Status = "success"
		return true
	}
	last.Status = "failed"
	return false
}

// ExecuteFullWorkflow runs the chain end to end: plan a route, start
// navigation, sweep with sonar, then recognize and strike every target
// that carries a sonar image. The chain aborts on the first failed
// step; recognition and strike failures fail the run after all targets
// were attempted.
func (c *Caller) ExecuteFullWorkflow(point1, point2 Point, obstacle *Obstacle) *ExecuteResult {
	start := epochSeconds()
	status := &WorkflowStatus{TotalSteps: 4, Status: "running"}

	finish := func(outcome string) *ExecuteResult {
		status.Status = outcome
		status.TotalTime = epochSeconds() - start
		endpoints := make(map[string]any)
		for key, info := range c.Endpoints() {
			endpoints[key] = info
		}
		return &ExecuteResult{
			Success:          outcome == "success",
			Workflow:         status,
			Results:          c.Results(),
			Errors:           c.Errors(),
			ServiceEndpoints: endpoints,
		}
	}

	status.Step = 1
	status.beginStep("航路规划")
	routeResult := c.CallRoutePlan(point1, point2, obstacle)
	if !status.endStep(routeResult) {
		return finish("failed")
	}

	status.Step = 2
	status.beginStep("启动航控")
	route, _ := routeResult["route"].([]any)
	if !status.endStep(c.CallNaviControl(route)) {
		return finish("failed")
	}

	status.Step = 3
	status.beginStep("声纳探测")
	sonarResult := c.CallSonar()
	if !status.endStep(sonarResult) {
		return finish("failed")
	}

	status.Step = 4
	targets, _ := sonarResult["targets"].([]any)
	recognized := make(map[string]bool)
	allRecognized := true
	for i, item := range targets {
		target, ok := item.(map[string]any)
		if !ok {
			continue
		}
		imagePath, _ := target["image_path"].(string)
		if imagePath == "" {
			continue
		}
		status.beginStep(fmt.Sprintf("目标识别 (目标 %v)", targetLabel(target, i)))
		result := c.CallRecognize(imagePath)
		if status.endStep(result) {
			recognized[imagePath] = true
		} else {
			allRecognized = false
		}
	}
	if !allRecognized {
		return finish("failed")
	}

	status.Step = 5
	allHit := true
	for i, item := range targets {
		target, ok := item.(map[string]any)
		if !ok {
			continue
		}
		imagePath, _ := target["image_path"].(string)
		if imagePath == "" || !recognized[imagePath] {
			continue
		}
		label := targetLabel(target, i)
		longitude, _ := target["longitude"].(float64)
		latitude, _ := target["latitude"].(float64)
		status.beginStep(fmt.Sprintf("目标打击 (目标 %v)", label))
		if !status.endStep(c.CallHit(label, longitude, latitude)) {
			allHit = false
		}
	}
	if !allHit {
		return finish("failed")
	}
	return finish("success")
}

func targetLabel(target map[string]any, index int) any {
	if id, ok := target["id"]; ok && id != nil {
		return id
	}
	return index + 1
}

// ServiceStatus reports per-service health straight from discovery.
type ServiceStatus struct {
	Healthy  map[string]bool   `json:"healthy"`
	Messages map[string]string `json:"messages"`
}

// Status queries discovery for the health of every pipeline service.
func (c *Caller) Status() *ServiceStatus {
	status := &ServiceStatus{
		Healthy:  make(map[string]bool, len(serviceKeys)),
		Messages: make(map[string]string, len(serviceKeys)),
	}
	for key, service := range serviceKeys {
		_, info, err := c.locator.ResolveStrict(service)
		if err != nil {
			status.Healthy[key] = false
			status.Messages[key] = fmt.Sprintf("服务未发现，请确保服务 %q 已注册: %v", service, err)
			continue
		}
		status.Healthy[key] = info.Healthy
		if info.Healthy {
			status.Messages[key] = fmt.Sprintf("服务在线 (%s:%d, 节点: %s)", info.IP, info.Port, info.NodeID)
		} else {
			status.Messages[key] = fmt.Sprintf("服务不健康 (%s:%d, 节点: %s)", info.IP, info.Port, info.NodeID)
		}
	}
	return status
}
