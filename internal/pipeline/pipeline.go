// Package pipeline drives the standalone decision chain: route
// planning, navigation control, sonar detection, target recognition and
// target strike. Service addresses come exclusively from discovery;
// there are no fallback URLs here.
package pipeline

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ohler55/ojg/oj"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"fsl/mission-control/internal/discovery"
	"fsl/mission-control/pkg/logger"
	"fsl/mission-control/pkg/types"
)

// Discovery names of the five pipeline services.
const (
	ServiceRoutePlan   = "planRoute1"
	ServiceNaviControl = "controlUSV"
	ServiceSonar       = "detectTarget"
	ServiceRecognize   = "recognizeTarget"
	ServiceHit         = "hitTarget"
)

// serviceKeys maps the result keys to discovery service names.
var serviceKeys = map[string]string{
	"route_plan":       ServiceRoutePlan,
	"navi_control":     ServiceNaviControl,
	"sonar":            ServiceSonar,
	"target_recognize": ServiceRecognize,
	"target_hit":       ServiceHit,
}

// Point is a longitude/latitude pair on the pipeline wire.
type Point struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// Obstacle is a polygon the route planner must avoid.
type Obstacle struct {
	Polygon []Point `json:"polygon"`
}

// Caller resolves and invokes the pipeline services. Results and errors
// accumulate per service key, mirroring what the UI renders.
type Caller struct {
	locator *discovery.Locator
	timeout time.Duration
	client  *fasthttp.Client

	mu        sync.Mutex
	urls      map[string]string
	endpoints map[string]*types.EndpointInfo
	results   map[string]map[string]any
	errors    map[string]string
}

// NewCaller creates a caller and performs an initial discovery round.
func NewCaller(locator *discovery.Locator, timeout time.Duration) *Caller {
	c := &Caller{
		locator:   locator,
		timeout:   timeout,
		client:    &fasthttp.Client{},
		urls:      make(map[string]string),
		endpoints: make(map[string]*types.EndpointInfo),
		results:   make(map[string]map[string]any),
		errors:    make(map[string]string),
	}
	c.DiscoverServices()
	return c
}

// DiscoverServices refreshes every pipeline service endpoint. Services
// that cannot be resolved keep no address and fail on use.
func (c *Caller) DiscoverServices() {
	for key, service := range serviceKeys {
		url, info, err := c.locator.ResolveStrict(service)
		c.mu.Lock()
		if err != nil {
			delete(c.urls, key)
			delete(c.endpoints, key)
			c.mu.Unlock()
			logger.Warn("管线服务未发现", zap.String("service", service), zap.Error(err))
			continue
		}
		c.urls[key] = url
		c.endpoints[key] = info
		c.mu.Unlock()
	}
}

// Endpoints returns the currently known endpoint metadata per service key.
func (c *Caller) Endpoints() map[string]*types.EndpointInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]*types.EndpointInfo, len(c.endpoints))
	for key, info := range c.endpoints {
		out[key] = info
	}
	return out
}

// Results returns the per-service results accumulated so far.
func (c *Caller) Results() map[string]map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]map[string]any, len(c.results))
	for key, result := range c.results {
		out[key] = result
	}
	return out
}

// Errors returns the per-service error messages accumulated so far.
func (c *Caller) Errors() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.errors))
	for key, message := range c.errors {
		out[key] = message
	}
	return out
}

func (c *Caller) urlFor(key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	url, ok := c.urls[key]
	if !ok || url == "" {
		return "", fmt.Errorf("服务 '%s' 未从服务发现获取到地址，请确保服务已注册并运行", serviceKeys[key])
	}
	return strings.TrimRight(url, "/"), nil
}

func (c *Caller) record(key string, result map[string]any, errMsg string) map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[key] = result
	if errMsg != "" {
		c.errors[key] = errMsg
	}
	return result
}

func (c *Caller) failure(key string, err error) map[string]any {
	return c.record(key, map[string]any{
		"success":   false,
		"error":     err.Error(),
		"timestamp": epochSeconds(),
	}, err.Error())
}

// call issues the request and decodes the JSON response object.
func (c *Caller) call(method, url string, body any) (map[string]any, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(method)
	req.SetRequestURI(url)
	if body != nil {
		req.Header.SetContentType("application/json")
		data, err := oj.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("序列化请求失败: %w", err)
		}
		req.SetBody(data)
	}

	if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
		return nil, err
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("状态码 %d: %s", resp.StatusCode(), truncate(resp.Body(), 200))
	}
	parsed, err := oj.Parse(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("响应解析失败 (状态码: %d): %s", resp.StatusCode(), truncate(resp.Body(), 200))
	}
	doc, ok := parsed.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("响应不是 JSON 对象")
	}
	return doc, nil
}

// CallRoutePlan asks the route planner for a path between two points.
func (c *Caller) CallRoutePlan(point1, point2 Point, obstacle *Obstacle) map[string]any {
	base, err := c.urlFor("route_plan")
	if err != nil {
		return c.failure("route_plan", err)
	}
	if obstacle == nil {
		obstacle = &Obstacle{Polygon: []Point{}}
	}
	doc, err := c.call(fasthttp.MethodPost, base+"/planRoute1", map[string]any{
		"point1":   point1,
		"point2":   point2,
		"obstacle": obstacle,
	})
	if err != nil {
		return c.failure("route_plan", err)
	}
	return c.record("route_plan", map[string]any{
		"success":   boolField(doc, "success"),
		"algorithm": doc["algorithm"],
		"route":     listField(doc, "route"),
		"timestamp": epochSeconds(),
	}, "")
}

// CallNaviControl hands the planned route to navigation control.
func (c *Caller) CallNaviControl(route []any) map[string]any {
	base, err := c.urlFor("navi_control")
	if err != nil {
		return c.failure("navi_control", err)
	}
	doc, err := c.call(fasthttp.MethodPost, base+"/controlUSV", map[string]any{"route": route})
	if err != nil {
		return c.failure("navi_control", err)
	}
	return c.record("navi_control", map[string]any{
		"success":         boolField(doc, "success"),
		"message":         doc["message"],
		"waypoints_count": doc["waypoints_count"],
		"status":          doc["status"],
		"timestamp":       epochSeconds(),
	}, "")
}

// CallSonar triggers a sonar sweep and returns detected targets.
func (c *Caller) CallSonar() map[string]any {
	base, err := c.urlFor("sonar")
	if err != nil {
		return c.failure("sonar", err)
	}
	doc, err := c.call(fasthttp.MethodGet, base+"/detectTarget", nil)
	if err != nil {
		return c.failure("sonar", err)
	}
	timestamp := doc["timestamp"]
	if timestamp == nil {
		timestamp = epochSeconds()
	}
	return c.record("sonar", map[string]any{
		"success":      boolField(doc, "success"),
		"message":      doc["message"],
		"target_count": doc["target_count"],
		"targets":      listField(doc, "targets"),
		"timestamp":    timestamp,
	}, "")
}

// CallRecognize classifies one sonar image.
func (c *Caller) CallRecognize(imagePath string) map[string]any {
	base, err := c.urlFor("target_recognize")
	if err != nil {
		return c.failure("target_recognize", err)
	}
	doc, err := c.call(fasthttp.MethodPost, base+"/recognizeTarget", map[string]any{"image_path": imagePath})
	if err != nil {
		return c.failure("target_recognize", err)
	}
	return c.record("target_recognize", map[string]any{
		"success":        boolField(doc, "success"),
		"message":        doc["message"],
		"image_path":     doc["image_path"],
		"target_type":    doc["target_type"],
		"size":           doc["size"],
		"confidence":     doc["confidence"],
		"recognize_time": doc["recognize_time"],
	}, "")
}

// CallHit fires at one recognized target.
func (c *Caller) CallHit(targetID any, longitude, latitude float64) map[string]any {
	base, err := c.urlFor("target_hit")
	if err != nil {
		return c.failure("target_hit", err)
	}
	doc, err := c.call(fasthttp.MethodPost, base+"/hitTarget", map[string]any{
		"id":        targetID,
		"longitude": longitude,
		"latitude":  latitude,
	})
	if err != nil {
		return c.failure("target_hit", err)
	}
	return c.record("target_hit", map[string]any{
		"success":   boolField(doc, "success"),
		"message":   doc["message"],
		"target_id": doc["target_id"],
		"longitude": doc["longitude"],
		"latitude":  doc["latitude"],
		"hit_time":  doc["hit_time"],
		"damage":    doc["damage"],
		"status":    doc["status"],
	}, "")
}

func boolField(doc map[string]any, key string) bool {
	b, ok := doc[key].(bool)
	return ok && b
}

func listField(doc map[string]any, key string) []any {
	if list, ok := doc[key].([]any); ok {
		return list
	}
	return []any{}
}

func epochSeconds() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

func truncate(body []byte, limit int) string {
	if len(body) > limit {
		return string(body[:limit])
	}
	return string(body)
}
