// Package socketio implements fetch.Service over a socket.io connection.
package socketio

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/specialistvlad/computegrid/internal/ctxlog"
	"github.com/specialistvlad/computegrid/internal/fetch"
	"github.com/zclconf/go-cty/cty"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Config describes one socket.io endpoint.
type Config struct {
	URL                string
	Namespace          string
	InsecureSkipVerify bool
	// ConnectTimeout bounds Dial. Zero means 15s.
	ConnectTimeout time.Duration
}

// Client is a connected socket.io client. Calls on one client are serialized
// so a reply event resolves the call that asked for it.
type Client struct {
	io     *socket.Socket
	logger *slog.Logger
	mu     sync.Mutex
}

type opResult struct {
	value cty.Value
	err   error
}

// Dial connects to cfg.URL over the websocket transport.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	logger := ctxlog.FromContext(ctx).With("client", "socketio", "url", cfg.URL)
	logger.Info("Creating new client instance...")

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("socket.io URL %q needs a scheme and a host", cfg.URL)
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(cfg.Namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Successfully connected", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err, _ := errs[0].(error)
		if err == nil {
			err = fmt.Errorf("%v", errs[0])
		}
		logger.Debug("Connection attempt failed", "error", err)
		connectChan <- err
	})

	logger.Debug("Initiating connection...")
	io.Connect()

	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return &Client{io: io, logger: logger}, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection")
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %v waiting for socket.io connection", timeout)
	}
}

// Call emits req.Event with req.Data and waits for req.Reply. The first
// argument of the reply becomes the result.
func (c *Client) Call(ctx context.Context, req fetch.Request) (cty.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.io.Connected() {
		return cty.NilVal, fmt.Errorf("socket.io client is not connected")
	}
	logger := c.logger.With("sid", c.io.Id())
	logger.Debug("Executing request", "emitEvent", req.Event, "onEvent", req.Reply)

	done := make(chan opResult, 1)
	c.io.Once(types.EventName(req.Reply), func(data ...any) {
		if len(data) == 0 {
			done <- opResult{value: cty.NullVal(cty.DynamicPseudoType)}
			return
		}
		v, err := fetch.FromNative(data[0])
		done <- opResult{value: v, err: err}
	})

	data, err := fetch.ToNative(req.Data)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to convert request data: %w", err)
	}
	if logger.Enabled(ctx, slog.LevelDebug) {
		jsonData, _ := json.Marshal(data)
		logger.Debug("Emitting event", "event", req.Event, "data", string(jsonData))
	}
	c.io.Emit(req.Event, data)

	select {
	case <-ctx.Done():
		return cty.NilVal, fmt.Errorf("gave up waiting for event '%s': %w", req.Reply, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return cty.NilVal, res.err
		}
		logger.Debug("Received response event", "event", req.Reply)
		return res.value, nil
	}
}

// Close disconnects the client.
func (c *Client) Close() error {
	c.logger.Info("Destroying socket.io client instance", "sid", c.io.Id())
	c.io.Disconnect()
	return nil
}
