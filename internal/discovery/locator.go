// Package discovery resolves collaborating services through the
// controller's discovery API with per-service fallback addresses.
package discovery

import (
	"fmt"
	"time"

	"github.com/ohler55/ojg/oj"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"fsl/mission-control/pkg/logger"
	"fsl/mission-control/pkg/types"
)

// Locator queries the controller's discovery endpoint in lazy mode.
// Endpoint caching lives on the controller side; every resolution is a
// direct API call.
type Locator struct {
	controllerBase string
	timeout        time.Duration
	client         *fasthttp.Client
}

// NewLocator creates a locator against the given controller base URL.
func NewLocator(controllerBase string, timeout time.Duration) *Locator {
	return &Locator{
		controllerBase: controllerBase,
		timeout:        timeout,
		client:         &fasthttp.Client{},
	}
}

// Resolve returns the base URL for a service. Any failure, from
// transport errors to malformed responses, falls back to the given
// default URL with nil endpoint metadata; Resolve never fails.
func (l *Locator) Resolve(service, fallbackURL string) (string, *types.EndpointInfo) {
	url, info, err := l.query(service)
	if err != nil {
		logger.Warn("服务发现失败, 使用默认地址",
			zap.String("service", service),
			zap.String("fallback", fallbackURL),
			zap.Error(err))
		return fallbackURL, nil
	}
	logger.Info("发现服务",
		zap.String("service", service),
		zap.String("url", url),
		zap.String("nodeId", info.NodeID),
		zap.String("instanceId", info.InstanceID))
	return url, info
}

// ResolveStrict returns the service base URL or an error when discovery
// cannot produce a usable endpoint. Used by callers with no fallback.
func (l *Locator) ResolveStrict(service string) (string, *types.EndpointInfo, error) {
	return l.query(service)
}

func (l *Locator) query(service string) (string, *types.EndpointInfo, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(fmt.Sprintf("%s/v1/discovery/one?service=%s&strategy=lazy", l.controllerBase, service))

	if err := l.client.DoTimeout(req, resp, l.timeout); err != nil {
		return "", nil, fmt.Errorf("服务发现请求失败: %w", err)
	}

	if resp.StatusCode() == fasthttp.StatusNotFound {
		return "", nil, fmt.Errorf("服务 %s 未注册", service)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return "", nil, fmt.Errorf("服务发现返回状态码 %d", resp.StatusCode())
	}

	parsed, err := oj.Parse(resp.Body())
	if err != nil {
		return "", nil, fmt.Errorf("服务发现响应解析失败: %w", err)
	}
	endpoint, ok := parsed.(map[string]any)
	if !ok {
		return "", nil, fmt.Errorf("服务 %s 返回未知格式", service)
	}

	ip := stringOr(endpoint["ip"], "localhost")
	port := intOf(endpoint["port"])
	protocol := stringOr(endpoint["protocol"], "http")
	if port == 0 {
		return "", nil, fmt.Errorf("服务 %s 返回的端口无效", service)
	}

	info := &types.EndpointInfo{
		IP:          ip,
		Port:        port,
		Protocol:    protocol,
		NodeID:      stringOr(endpoint["nodeId"], ""),
		InstanceID:  stringOr(endpoint["instanceId"], ""),
		ServiceName: stringOr(endpoint["serviceName"], service),
		Healthy:     boolOf(endpoint["healthy"]),
	}
	return fmt.Sprintf("%s://%s:%d", protocol, ip, port), info, nil
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

func intOf(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

func boolOf(v any) bool {
	b, ok := v.(bool)
	return ok && b
}
