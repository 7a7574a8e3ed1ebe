package mission

import (
	"time"

	"github.com/ohler55/ojg/oj"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"fsl/mission-control/internal/discovery"
	"fsl/mission-control/internal/task"
	"fsl/mission-control/pkg/logger"
	"fsl/mission-control/pkg/types"
)

// Notifier pushes completed task snapshots to the analysis service from
// a background worker, keeping the completion path free of network I/O.
// Failures are logged and never affect the task itself.
type Notifier struct {
	store    *task.Store
	locator  *discovery.Locator
	fallback string
	timeout  time.Duration
	metrics  *Metrics
	client   *fasthttp.Client

	queue chan *types.Task
	done  chan struct{}
}

// NewNotifier creates a stopped notifier with a bounded queue.
func NewNotifier(store *task.Store, locator *discovery.Locator, fallbackURL string, timeout time.Duration, metrics *Metrics) *Notifier {
	return &Notifier{
		store:    store,
		locator:  locator,
		fallback: fallbackURL,
		timeout:  timeout,
		metrics:  metrics,
		client:   &fasthttp.Client{},
		queue:    make(chan *types.Task, 64),
		done:     make(chan struct{}),
	}
}

// Start launches the delivery worker.
func (n *Notifier) Start() {
	go func() {
		defer close(n.done)
		for snapshot := range n.queue {
			n.notify(snapshot)
		}
	}()
}

// Stop drains the queue and waits for the worker to exit.
func (n *Notifier) Stop() {
	close(n.queue)
	<-n.done
}

// Enqueue hands a completed task snapshot to the worker. Never blocks;
// when the queue is full the notification is dropped with a log entry.
func (n *Notifier) Enqueue(snapshot *types.Task) {
	select {
	case n.queue <- snapshot:
	default:
		logger.Warn("统计通知队列已满, 丢弃通知", zap.String("taskId", snapshot.TaskID))
	}
}

func (n *Notifier) notify(snapshot *types.Task) {
	analyzeURL, endpointInfo := n.locator.Resolve(ServiceAnalyzeTask, n.fallback)
	payload := analyzePayload(snapshot)
	logger.Info("任务完成, 自动调用统计分析服务",
		zap.String("taskId", snapshot.TaskID),
		zap.String("url", analyzeURL))

	res, err := postJSON(n.client, analyzeURL+"/analyze", payload, n.timeout)
	n.metrics.Observe(ServiceAnalyzeTask, res.duration, err != nil || res.status != fasthttp.StatusOK)

	call := types.ServiceCall{
		ServiceName:  ServiceAnalyzeTask,
		Endpoint:     "/analyze",
		Method:       fasthttp.MethodPost,
		Timestamp:    float64(time.Now().UnixNano()) / float64(time.Second),
		Request:      payload,
		DurationMS:   float64(res.duration.Microseconds()) / 1000,
		EndpointInfo: endpointInfo,
	}

	switch {
	case err != nil:
		call.Error = err.Error()
		logger.Warn("统计服务调用异常",
			zap.String("taskId", snapshot.TaskID),
			zap.Error(err))
	case res.status != fasthttp.StatusOK:
		call.StatusCode = res.status
		call.Error = string(res.body)
		logger.Warn("统计服务调用失败",
			zap.String("taskId", snapshot.TaskID),
			zap.Int("status", res.status))
	default:
		call.StatusCode = res.status
		if result, perr := oj.Parse(res.body); perr == nil {
			call.Response = result
		}
		logger.Info("统计服务调用成功", zap.String("taskId", snapshot.TaskID))
	}

	if err := n.store.RecordServiceCall(snapshot.TaskID, call); err != nil {
		logger.Warn("记录统计调用失败",
			zap.String("taskId", snapshot.TaskID),
			zap.Error(err))
	}
}
