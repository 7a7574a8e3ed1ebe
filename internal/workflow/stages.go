// Package workflow derives the enabled mission stages from a controller
// workflow definition.
package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/ohler55/ojg/oj"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"fsl/mission-control/pkg/logger"
	"fsl/mission-control/pkg/types"
)

// Resolver fetches workflow definitions from the controller and scans
// their nodes for stage markers.
type Resolver struct {
	controllerBase string
	timeout        time.Duration
	client         *fasthttp.Client
}

// NewResolver creates a resolver against the given controller base URL.
func NewResolver(controllerBase string, timeout time.Duration) *Resolver {
	return &Resolver{
		controllerBase: controllerBase,
		timeout:        timeout,
		client:         &fasthttp.Client{},
	}
}

// Stages returns the stage set enabled by a workflow definition. Any
// failure, from a missing workflow to malformed JSON, yields the sweep
// only default; a mission can always at least sweep.
func (r *Resolver) Stages(workflowID string) types.StageSet {
	stages := types.DefaultStageSet()
	if workflowID == "" {
		return stages
	}

	data, err := r.fetch(workflowID)
	if err != nil {
		logger.Warn("获取工作流详情失败",
			zap.String("workflowId", workflowID),
			zap.Error(err))
		return stages
	}

	doc, ok := data.(map[string]any)
	if !ok {
		logger.Warn("工作流详情格式异常", zap.String("workflowId", workflowID))
		return stages
	}

	defs := indexTaskDefinitions(listOf(doc, "taskDefinitions", "TaskDefinitions"))
	for _, item := range listOf(doc, "nodes", "Nodes") {
		node, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if stage, found := stageOfNode(node, defs); found {
			stages[stage] = true
		}
	}
	return stages
}

func (r *Resolver) fetch(workflowID string) (any, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(fmt.Sprintf("%s/v1/dag/workflows/%s", r.controllerBase, workflowID))

	if err := r.client.DoTimeout(req, resp, r.timeout); err != nil {
		return nil, err
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("状态码 %d", resp.StatusCode())
	}
	return oj.Parse(resp.Body())
}

// stageOfNode collects stage name candidates from a node's labels, its
// display names and its linked task definition, in that priority order,
// and returns the first one that normalizes to a known stage.
func stageOfNode(node map[string]any, defs map[string]map[string]any) (types.StageName, bool) {
	var candidates []string

	candidates = append(candidates, labelCandidates(node)...)
	candidates = append(candidates, stringValues(node, "name", "Name", "taskName", "TaskName", "title", "Title")...)

	if defID := firstString(node, "taskDefId", "TaskDefID", "task_def_id"); defID != "" {
		if def, ok := defs[defID]; ok {
			candidates = append(candidates, labelCandidates(def)...)
			candidates = append(candidates, stringValues(def, "name", "Name", "taskName", "TaskName")...)
		}
	}

	for _, cand := range candidates {
		if stage, ok := normalizeStage(cand); ok {
			return stage, true
		}
	}
	return "", false
}

// stageSynonyms 阶段名称同义词表, 中英文均可
var stageSynonyms = map[string]types.StageName{
	"扫雷":          types.StageSweep,
	"sweep":       types.StageSweep,
	"查证":          types.StageInvestigate,
	"调查":          types.StageInvestigate,
	"investigate": types.StageInvestigate,
	"灭雷":          types.StageDestroy,
	"摧毁":          types.StageDestroy,
	"destroy":     types.StageDestroy,
	"评估":          types.StageEvaluate,
	"评价":          types.StageEvaluate,
	"evaluate":    types.StageEvaluate,
}

func normalizeStage(candidate string) (types.StageName, bool) {
	stage, ok := stageSynonyms[strings.ToLower(strings.TrimSpace(candidate))]
	return stage, ok
}

func indexTaskDefinitions(items []any) map[string]map[string]any {
	defs := make(map[string]map[string]any, len(items))
	for _, item := range items {
		def, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if id := firstString(def, "defId", "DefID", "definitionId", "DefinitionID"); id != "" {
			defs[id] = def
		}
	}
	return defs
}

func labelCandidates(m map[string]any) []string {
	for _, key := range []string{"labels", "Labels"} {
		labels, ok := m[key].(map[string]any)
		if !ok {
			continue
		}
		return stringValues(labels, "workflow.stage", "stage")
	}
	return nil
}

func stringValues(m map[string]any, keys ...string) []string {
	var out []string
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case int64:
			return fmt.Sprintf("%d", v)
		case float64:
			return fmt.Sprintf("%d", int64(v))
		}
	}
	return ""
}

func listOf(m map[string]any, keys ...string) []any {
	for _, key := range keys {
		if list, ok := m[key].([]any); ok && len(list) > 0 {
			return list
		}
	}
	return nil
}
