package http

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"hrunner/internal/config"
	"hrunner/internal/core"
	"hrunner/internal/template"
)

const (
	// maxDebugBodySize limits response body logged in verbose mode.
	maxDebugBodySize = 4096
	// maxReadBodySize limits response body read for extraction and validation.
	maxReadBodySize = 10 * 1024 * 1024 // 10MB
)

type Step struct {
	config  config.StepConfig
	baseURL string
	client  *http.Client
	debug   *DebugLogger
}

func NewStep(cfg config.StepConfig, baseURL string, client *http.Client, debug *DebugLogger) *Step {
	return &Step{
		config:  cfg,
		baseURL: baseURL,
		client:  client,
		debug:   debug,
	}
}

func (s *Step) Name() string {
	if s.config.Name != "" {
		return s.config.Name
	}
	return s.config.Method + " " + s.config.URL
}

// failed records a step that never produced a response.
func (s *Step) failed(task core.TaskInfo, start time.Time, err error) (core.Result, error) {
	duration := time.Since(start)
	s.debug.Failure(task, s.Name(), err, duration)
	return core.Result{
		Duration: duration,
		Success:  false,
		Error:    err.Error(),
	}, err
}

// Execute sends the request. Transport and templating problems are returned
// as errors; extraction and validation failures only mark the result
// unsuccessful.
func (s *Step) Execute(ctx context.Context, vars core.Variables) (core.Result, error) {
	task := core.TaskFromContext(ctx)
	start := time.Now()

	url, err := template.Substitute(s.config.URL, vars)
	if err != nil {
		return s.failed(task, start, err)
	}
	url = joinURL(s.baseURL, url)

	body, err := template.Substitute(s.config.Body, vars)
	if err != nil {
		return s.failed(task, start, err)
	}

	headers, err := template.SubstituteMap(s.config.Headers, vars)
	if err != nil {
		return s.failed(task, start, err)
	}

	method := s.config.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, url, strings.NewReader(body))
	if err != nil {
		return s.failed(task, start, err)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	s.debug.Request(task, s.Name(), req)

	resp, err := s.client.Do(req)
	duration := time.Since(start)

	if err != nil {
		s.debug.Failure(task, s.Name(), err, duration)
		return core.Result{
			Duration: duration,
			Success:  false,
			Error:    err.Error(),
		}, err
	}
	defer resp.Body.Close()

	needsBody := len(s.config.Extract) > 0 || len(s.config.Validate) > 0
	var respBody []byte
	if needsBody || s.debug != nil {
		limit := int64(maxDebugBodySize)
		if needsBody {
			limit = maxReadBodySize
		}
		respBody, _ = io.ReadAll(io.LimitReader(resp.Body, limit))
	}
	_, _ = io.Copy(io.Discard, resp.Body) // drain errors are ignorable

	debugBody := respBody
	if len(debugBody) > maxDebugBodySize {
		debugBody = debugBody[:maxDebugBodySize]
	}
	s.debug.Response(task, s.Name(), resp, debugBody, duration)

	// With explicit validators the status code is just another check;
	// otherwise anything >= 400 fails the step.
	success := len(s.config.Validate) > 0 || resp.StatusCode < 400
	errStr := ""
	if !success {
		errStr = resp.Status
	}

	var extracted map[string]any
	if success && len(s.config.Extract) > 0 {
		extracted, err = template.Extract(respBody, s.config.Extract)
		if err != nil {
			success = false
			errStr = err.Error()
		}
	}

	if success && len(s.config.Validate) > 0 {
		r := &response{statusCode: resp.StatusCode, header: resp.Header, body: respBody}
		scope := scopedVariables{base: vars, overlay: extracted}
		if err := validate(r, s.config.Validate, scope); err != nil {
			success = false
			errStr = err.Error()
		}
	}

	return core.Result{
		Duration:   duration,
		Success:    success,
		Error:      errStr,
		StatusCode: resp.StatusCode,
		BytesSent:  int64(len(body)),
		BytesRecv:  int64(len(respBody)),
		Extract:    extracted,
	}, nil
}

// joinURL prefixes relative URLs with the testcase base_url.
func joinURL(baseURL, url string) string {
	if baseURL == "" || strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(url, "/")
}

// scopedVariables lets validators see values extracted by the same step
// before they are committed to the task's variables.
type scopedVariables struct {
	base    core.Variables
	overlay map[string]any
}

func (v scopedVariables) Get(key string) (any, bool) {
	if val, ok := v.overlay[key]; ok {
		return val, true
	}
	return v.base.Get(key)
}

func (v scopedVariables) Set(key string, value any) {
	v.base.Set(key, value)
}
