package manifest

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/computegrid/internal/ctxlog"
	"github.com/specialistvlad/computegrid/internal/fetch"
	"github.com/specialistvlad/computegrid/internal/fetch/socketio"
)

// Clients holds the connected remote clients of a model.
type Clients struct {
	services map[string]fetch.Service
	conns    []*socketio.Client
}

// DialClients connects every client declared in m. Clients with a breaker
// block are wrapped in a fetch.Breaker. On error every client dialed so far
// is closed.
func DialClients(ctx context.Context, m *Model) (*Clients, error) {
	logger := ctxlog.FromContext(ctx)
	cs := &Clients{services: make(map[string]fetch.Service, len(m.Clients))}
	for _, c := range m.Clients {
		conn, err := socketio.Dial(ctx, socketio.Config{
			URL:                c.URL,
			Namespace:          c.Namespace,
			InsecureSkipVerify: c.InsecureSkipVerify,
			ConnectTimeout:     c.Timeout,
		})
		if err != nil {
			_ = cs.Close()
			return nil, fmt.Errorf("client '%s': %w", c.Name, err)
		}
		cs.conns = append(cs.conns, conn)

		var svc fetch.Service = conn
		if c.Breaker != nil {
			svc = fetch.NewBreaker(ctx, c.Name, conn, fetch.BreakerSettings{
				MaxFailures: c.Breaker.MaxFailures,
				OpenTimeout: c.Breaker.OpenTimeout,
			})
		}
		cs.services[c.Name] = svc
		logger.Info("✅ Client connected.", "client", c.Name, "kind", c.Kind)
	}
	return cs, nil
}

// Services returns the services by client name.
func (cs *Clients) Services() map[string]fetch.Service {
	if cs == nil {
		return nil
	}
	return cs.services
}

// Close disconnects every client.
func (cs *Clients) Close() error {
	if cs == nil {
		return nil
	}
	var errs []error
	for _, c := range cs.conns {
		errs = append(errs, c.Close())
	}
	cs.conns = nil
	return errors.Join(errs...)
}
