package workflow

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fsl/mission-control/pkg/types"
)

func stageServer(t *testing.T, body string) *Resolver {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/dag/workflows/wf-1", r.URL.Path)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewResolver(srv.URL, 5*time.Second)
}

func TestStagesEmptyWorkflowID(t *testing.T) {
	resolver := NewResolver("http://127.0.0.1:8080", time.Second)
	stages := resolver.Stages("")
	assert.Equal(t, types.DefaultStageSet(), stages)
}

func TestStagesFromNodeLabels(t *testing.T) {
	resolver := stageServer(t, `{
		"nodes": [
			{"labels": {"workflow.stage": "查证"}},
			{"labels": {"stage": "灭雷"}}
		]
	}`)

	stages := resolver.Stages("wf-1")
	assert.True(t, stages.Has(types.StageSweep))
	assert.True(t, stages.Has(types.StageInvestigate))
	assert.True(t, stages.Has(types.StageDestroy))
	assert.False(t, stages.Has(types.StageEvaluate))
}

func TestStagesFromNodeNames(t *testing.T) {
	resolver := stageServer(t, `{
		"nodes": [
			{"name": "调查"},
			{"taskName": "摧毁"},
			{"title": "evaluate"}
		]
	}`)

	stages := resolver.Stages("wf-1")
	assert.True(t, stages.Has(types.StageInvestigate))
	assert.True(t, stages.Has(types.StageDestroy))
	assert.True(t, stages.Has(types.StageEvaluate))
}

func TestStagesFromTaskDefinitions(t *testing.T) {
	resolver := stageServer(t, `{
		"nodes": [
			{"taskDefId": "def-1"},
			{"taskDefId": 2}
		],
		"taskDefinitions": [
			{"defId": "def-1", "labels": {"workflow.stage": "评估"}},
			{"definitionId": "2", "name": "查证"}
		]
	}`)

	stages := resolver.Stages("wf-1")
	assert.True(t, stages.Has(types.StageEvaluate))
	assert.True(t, stages.Has(types.StageInvestigate))
}

func TestStagesLabelBeatsName(t *testing.T) {
	// 标签和名称冲突时以标签为准
	resolver := stageServer(t, `{
		"nodes": [
			{"labels": {"workflow.stage": "灭雷"}, "name": "评估"}
		]
	}`)

	stages := resolver.Stages("wf-1")
	assert.True(t, stages.Has(types.StageDestroy))
	assert.False(t, stages.Has(types.StageEvaluate))
}

func TestStagesUnknownNamesIgnored(t *testing.T) {
	resolver := stageServer(t, `{
		"nodes": [
			{"name": "起飞"},
			{"name": "返航"}
		]
	}`)

	stages := resolver.Stages("wf-1")
	assert.Equal(t, types.DefaultStageSet(), stages)
}

func TestStagesFallsBackOnHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	stages := NewResolver(srv.URL, time.Second).Stages("wf-1")
	assert.Equal(t, types.DefaultStageSet(), stages)
}

func TestStagesFallsBackOnMalformedJSON(t *testing.T) {
	resolver := stageServer(t, `not json at all`)
	stages := resolver.Stages("wf-1")
	assert.Equal(t, types.DefaultStageSet(), stages)
}

func TestStagesFallsBackOnTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	stages := NewResolver(srv.URL, time.Second).Stages("wf-1")
	assert.Equal(t, types.DefaultStageSet(), stages)
}
