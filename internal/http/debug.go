package http

import (
	"bytes"
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"hrunner/internal/core"
)

// maxBodyLogSize caps the request and response bodies printed by --verbose.
const maxBodyLogSize = 1024

// maskedHeaders never have their values printed.
var maskedHeaders = map[string]bool{
	"Authorization":       true,
	"Proxy-Authorization": true,
	"Cookie":              true,
	"Set-Cookie":          true,
	"X-Api-Key":           true,
}

// DebugLogger traces each exchange of a --verbose run. Every block is
// tagged with the task name and id, and requests list the task's parameter
// row, so the rows of a parameterized testcase can be told apart.
// A nil DebugLogger discards everything.
type DebugLogger struct {
	mu  sync.Mutex
	out io.Writer
}

func NewDebugLogger(out io.Writer) *DebugLogger {
	return &DebugLogger{out: out}
}

// Request prints the outgoing request. A request body is read and put back.
func (d *DebugLogger) Request(task core.TaskInfo, step string, req *http.Request) {
	if d == nil {
		return
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s >>> %s: %s %s\n", taskTag(task), step, req.Method, req.URL)
	if row := paramList(task.Params); row != "" {
		fmt.Fprintf(&b, "  params: %s\n", row)
	}
	writeHeaders(&b, req.Header)
	if req.Body != nil && req.Body != http.NoBody {
		body, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(body))
		if err == nil {
			writeBody(&b, body)
		}
	}
	d.write(b.Bytes())
}

// Response prints the status, headers and (already truncated) body.
func (d *DebugLogger) Response(task core.TaskInfo, step string, resp *http.Response, body []byte, took time.Duration) {
	if d == nil {
		return
	}
	var b bytes.Buffer
	status := resp.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	fmt.Fprintf(&b, "%s <<< %s: %s in %s\n", taskTag(task), step, status, took.Round(time.Millisecond))
	writeHeaders(&b, resp.Header)
	writeBody(&b, body)
	d.write(b.Bytes())
}

// Failure prints a step that produced no response.
func (d *DebugLogger) Failure(task core.TaskInfo, step string, err error, took time.Duration) {
	if d == nil {
		return
	}
	d.write(fmt.Appendf(nil, "%s !!! %s: failed after %s: %v\n", taskTag(task), step, took.Round(time.Millisecond), err))
}

func (d *DebugLogger) write(p []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, _ = d.out.Write(p)
}

// taskTag renders "[name #id]", or "[#id]" for unnamed tasks.
func taskTag(task core.TaskInfo) string {
	if task.Name == "" {
		return fmt.Sprintf("[#%d]", task.ID)
	}
	return fmt.Sprintf("[%s #%d]", task.Name, task.ID)
}

func paramList(params map[string]any) string {
	parts := make([]string, 0, len(params))
	for _, k := range slices.Sorted(maps.Keys(params)) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, params[k]))
	}
	return strings.Join(parts, " ")
}

func writeHeaders(b *bytes.Buffer, h http.Header) {
	for _, name := range slices.Sorted(maps.Keys(h)) {
		value := strings.Join(h[name], ", ")
		if maskedHeaders[http.CanonicalHeaderKey(name)] {
			value = "***"
		}
		fmt.Fprintf(b, "  %s: %s\n", name, value)
	}
}

func writeBody(b *bytes.Buffer, body []byte) {
	switch {
	case len(body) == 0:
	case len(body) > maxBodyLogSize:
		fmt.Fprintf(b, "  body: %s... (truncated, %d bytes total)\n", body[:maxBodyLogSize], len(body))
	default:
		fmt.Fprintf(b, "  body: %s\n", body)
	}
}
