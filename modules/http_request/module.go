package http_request

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/specialistvlad/computegrid/internal/ctxlog"
	"github.com/specialistvlad/computegrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Client is used for every request. Nil means a client built like the
	// one below.
	Client *http.Client
}

// Input defines the `args` of an http_request compute.
type Input struct {
	URL     string `cty:"url"`
	Method  string `cty:"method"`
	Timeout string `cty:"timeout"`
}

// newClient builds the shared client with connection pooling.
func newClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// OnHTTPRequest performs one request. A string dependency called "url"
// overrides the url argument so the target can follow a state.
func OnHTTPRequest(client *http.Client) func(ctx context.Context, call *registry.StepCall) (any, error) {
	return func(ctx context.Context, call *registry.StepCall) (any, error) {
		logger := ctxlog.FromContext(ctx).With("compute", call.Compute)
		var input Input
		if in, ok := call.Input.(*Input); ok {
			input = *in
		}
		if dep, ok := call.Deps["url"]; ok && !dep.IsNull() {
			if err := gocty.FromCtyValue(dep, &input.URL); err != nil {
				return nil, fmt.Errorf("url dependency: %w", err)
			}
		}
		if input.URL == "" {
			return nil, fmt.Errorf("http_request needs a url")
		}
		if input.Method == "" {
			input.Method = http.MethodGet
		}
		if input.Timeout != "" {
			timeout, err := time.ParseDuration(input.Timeout)
			if err != nil {
				return nil, fmt.Errorf("invalid timeout: %w", err)
			}
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		logger.Info("Making HTTP request", "method", input.Method, "url", input.URL)
		req, err := http.NewRequestWithContext(ctx, input.Method, input.URL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		logger.Info("Received HTTP response", "status", resp.Status)

		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}

		return cty.ObjectVal(map[string]cty.Value{
			"status_code": cty.NumberIntVal(int64(resp.StatusCode)),
			"body":        cty.StringVal(string(bodyBytes)),
		}), nil
	}
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	client := m.Client
	if client == nil {
		client = newClient()
	}
	r.RegisterStep("http_request", &registry.StepHandler{
		NewInput: func() any { return new(Input) },
		Async:    true,
		Fn:       OnHTTPRequest(client),
	})
}
