package mission

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

// httpResult is the outcome of one outbound HTTP call.
type httpResult struct {
	status   int
	body     []byte
	duration time.Duration
}

// postJSON issues a POST with a JSON body and returns status, body and
// elapsed time. A returned error means the service was not reachable.
func postJSON(client *fasthttp.Client, url string, payload any, timeout time.Duration) (httpResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return httpResult{}, fmt.Errorf("序列化请求失败: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetRequestURI(url)
	req.SetBody(body)

	start := time.Now()
	if err := client.DoTimeout(req, resp, timeout); err != nil {
		return httpResult{duration: time.Since(start)}, err
	}
	return httpResult{
		status:   resp.StatusCode(),
		body:     append([]byte(nil), resp.Body()...),
		duration: time.Since(start),
	}, nil
}

// getJSON issues a GET and returns status, body and elapsed time.
func getJSON(client *fasthttp.Client, url string, timeout time.Duration) (httpResult, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(url)

	start := time.Now()
	if err := client.DoTimeout(req, resp, timeout); err != nil {
		return httpResult{duration: time.Since(start)}, err
	}
	return httpResult{
		status:   resp.StatusCode(),
		body:     append([]byte(nil), resp.Body()...),
		duration: time.Since(start),
	}, nil
}
