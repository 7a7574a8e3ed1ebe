package rest

import (
	"github.com/gofiber/fiber/v2"

	"fsl/mission-control/internal/task"
	"fsl/mission-control/pkg/types"
)

func (s *Server) healthz(c *fiber.Ctx) error {
	return c.JSON(OKResponse{Status: "ok"})
}

func (s *Server) getDefaults(c *fiber.Ctx) error {
	return c.JSON(s.manager.Defaults())
}

func (s *Server) getMetrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"services": s.manager.MetricsSummary()})
}

func (s *Server) startTask(c *fiber.Ctx) error {
	var req StartTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return task.NewBadRequestError("请求体解析失败")
	}
	if req.Tings == nil {
		return task.NewBadRequestError("缺少字段: tings")
	}
	if req.TaskArea == nil {
		return task.NewBadRequestError("缺少字段: task_area")
	}

	snapshot, payload, err := s.manager.CreateTask(types.TaskConfig{
		TingCount:  req.TingCount,
		Tings:      req.Tings,
		TaskArea:   *req.TaskArea,
		WorkflowID: req.WorkflowID,
	})
	if err != nil {
		return err
	}
	return c.JSON(StartTaskResponse{
		TaskID:       snapshot.TaskID,
		Stage:        snapshot.Stage,
		SweepPayload: payload,
	})
}

func stageParam(c *fiber.Ctx) (types.StageName, error) {
	stage, err := types.ParseStageName(c.Params("stage"))
	if err != nil {
		return "", task.NewInvalidStageError(c.Params("stage"))
	}
	return stage, nil
}

func (s *Server) stageInput(c *fiber.Ctx) error {
	stage, err := stageParam(c)
	if err != nil {
		return err
	}
	payload, err := s.manager.StageInput(c.Params("id"), stage)
	if err != nil {
		return err
	}
	return c.JSON(payload)
}

func (s *Server) stageBegin(c *fiber.Ctx) error {
	stage, err := stageParam(c)
	if err != nil {
		return err
	}
	if err := s.manager.BeginStage(c.Params("id"), stage); err != nil {
		return err
	}
	return c.JSON(OKResponse{Status: "ok"})
}

func (s *Server) stageProgress(c *fiber.Ctx) error {
	stage, err := stageParam(c)
	if err != nil {
		return err
	}
	var report types.StageReport
	if err := c.BodyParser(&report); err != nil {
		return task.NewBadRequestError("请求体解析失败")
	}
	if err := s.manager.Progress(c.Params("id"), stage, &report); err != nil {
		return err
	}
	return c.JSON(OKResponse{Status: "ok"})
}

func (s *Server) stageResult(c *fiber.Ctx) error {
	stage, err := stageParam(c)
	if err != nil {
		return err
	}
	var report types.StageReport
	if err := c.BodyParser(&report); err != nil {
		return task.NewBadRequestError("请求体解析失败")
	}
	resp, err := s.manager.StageResult(c.Params("id"), stage, &report)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

func (s *Server) getStatus(c *fiber.Ctx) error {
	taskID := c.Query("task_id")
	if taskID == "" {
		return c.JSON(TaskListResponse{Tasks: s.manager.TaskIDs()})
	}
	snapshot, err := s.manager.Status(taskID)
	if err != nil {
		return err
	}
	return c.JSON(snapshot)
}

func (s *Server) serviceCalls(c *fiber.Ctx) error {
	snapshot, err := s.manager.Status(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(ServiceCallsResponse{
		TaskID:       snapshot.TaskID,
		ServiceCalls: snapshot.ServiceCalls,
		TotalCalls:   len(snapshot.ServiceCalls),
	})
}

func (s *Server) taskStatistics(c *fiber.Ctx) error {
	result, err := s.manager.Statistics(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (s *Server) listWorkflows(c *fiber.Ctx) error {
	result, err := s.proxy.ListWorkflows()
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (s *Server) listWorkflowRuns(c *fiber.Ctx) error {
	result, err := s.proxy.ListRuns(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (s *Server) workflowRunStatus(c *fiber.Ctx) error {
	result, err := s.proxy.RunStatus(c.Params("run"))
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (s *Server) runWorkflow(c *fiber.Ctx) error {
	var body map[string]any
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return task.NewBadRequestError("请求体解析失败")
		}
	}
	result, err := s.proxy.TriggerRun(c.Params("id"), body)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func parsePipelinePoints(c *fiber.Ctx) (*PipelineExecuteRequest, error) {
	var req PipelineExecuteRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, task.NewBadRequestError("请求体解析失败")
	}
	if req.Point1 == nil || req.Point1.Longitude == 0 || req.Point1.Latitude == 0 {
		return nil, task.NewBadRequestError("point1 必须包含 longitude 和 latitude")
	}
	if req.Point2 == nil || req.Point2.Longitude == 0 || req.Point2.Latitude == 0 {
		return nil, task.NewBadRequestError("point2 必须包含 longitude 和 latitude")
	}
	return &req, nil
}

func (s *Server) pipelineExecute(c *fiber.Ctx) error {
	req, err := parsePipelinePoints(c)
	if err != nil {
		return err
	}
	s.caller.DiscoverServices()
	return c.JSON(s.caller.ExecuteFullWorkflow(*req.Point1, *req.Point2, req.Obstacle))
}

func (s *Server) pipelineStatus(c *fiber.Ctx) error {
	return c.JSON(s.caller.Status())
}

func (s *Server) pipelineStep(c *fiber.Ctx, key string, result map[string]any) error {
	return c.JSON(PipelineStepResponse{
		Success:         result["success"] == true,
		Result:          result,
		ServiceEndpoint: s.caller.Endpoints()[key],
	})
}

func (s *Server) pipelineRoutePlan(c *fiber.Ctx) error {
	req, err := parsePipelinePoints(c)
	if err != nil {
		return err
	}
	s.caller.DiscoverServices()
	return s.pipelineStep(c, "route_plan", s.caller.CallRoutePlan(*req.Point1, *req.Point2, req.Obstacle))
}

func (s *Server) pipelineNaviControl(c *fiber.Ctx) error {
	var req NaviControlRequest
	if err := c.BodyParser(&req); err != nil {
		return task.NewBadRequestError("请求体解析失败")
	}
	if len(req.Route) == 0 {
		return task.NewBadRequestError("route 不能为空")
	}
	s.caller.DiscoverServices()
	return s.pipelineStep(c, "navi_control", s.caller.CallNaviControl(req.Route))
}

func (s *Server) pipelineSonar(c *fiber.Ctx) error {
	s.caller.DiscoverServices()
	return s.pipelineStep(c, "sonar", s.caller.CallSonar())
}

func (s *Server) pipelineRecognize(c *fiber.Ctx) error {
	var req RecognizeRequest
	if err := c.BodyParser(&req); err != nil {
		return task.NewBadRequestError("请求体解析失败")
	}
	if req.ImagePath == "" {
		return task.NewBadRequestError("缺少字段: image_path")
	}
	s.caller.DiscoverServices()
	return s.pipelineStep(c, "target_recognize", s.caller.CallRecognize(req.ImagePath))
}

func (s *Server) pipelineHit(c *fiber.Ctx) error {
	var req HitRequest
	if err := c.BodyParser(&req); err != nil {
		return task.NewBadRequestError("请求体解析失败")
	}
	if req.ID == nil {
		return task.NewBadRequestError("缺少字段: id")
	}
	s.caller.DiscoverServices()
	return s.pipelineStep(c, "target_hit", s.caller.CallHit(req.ID, req.Longitude, req.Latitude))
}
