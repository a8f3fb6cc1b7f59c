package fleet

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/printworks/printdesk/internal/metrics"
)

const (
	probeTimeout = 5 * time.Second
	probeRetries = 2
	statusPath   = "/api/v1/status"
)

// statusResponse is the JSON a printer's status endpoint returns.
type statusResponse struct {
	State    string  `json:"state"`
	Job      string  `json:"job"`
	Progress float64 `json:"progress"`
}

// Poller periodically probes every configured printer and feeds the
// results into the Manager. Printers that stay unreachable after retries
// degrade to offline instead of failing the cycle.
type Poller struct {
	manager  *Manager
	printers []PrinterConfig
	interval time.Duration
	client   *http.Client
	logger   *zap.Logger
}

// NewPoller creates a poller for the given fleet.
func NewPoller(manager *Manager, cfg *Config, logger *zap.Logger) *Poller {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Poller{
		manager:  manager,
		printers: cfg.Printers,
		interval: interval,
		client:   &http.Client{Timeout: probeTimeout},
		logger:   logger,
	}
}

// Run probes the fleet immediately and then on every tick until the
// context is canceled.
func (p *Poller) Run(ctx context.Context) {
	if len(p.printers) == 0 {
		p.logger.Info("fleet poller disabled: no printers configured")
		return
	}

	p.probeAll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probeAll(ctx)
		}
	}
}

func (p *Poller) probeAll(ctx context.Context) {
	for _, printer := range p.printers {
		status, err := p.probe(ctx, printer)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.FleetProbesTotal.WithLabelValues(printer.ID, "error").Inc()
			p.logger.Warn("printer unreachable, marking offline",
				zap.String("printer", printer.ID),
				zap.Error(err))
			_ = p.manager.SetStatus(printer.ID, StateOffline, "", 0)
			continue
		}

		metrics.FleetProbesTotal.WithLabelValues(printer.ID, "ok").Inc()
		_ = p.manager.SetStatus(printer.ID, mapState(status.State), status.Job, status.Progress)
	}

	_, printing := p.manager.Counts()
	metrics.PrintersPrinting.Set(float64(printing))
}

// probe fetches one printer's status, retrying transient failures with
// exponential backoff within the poll cycle.
func (p *Poller) probe(ctx context.Context, printer PrinterConfig) (statusResponse, error) {
	var status statusResponse

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+printer.Address+statusPath, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := p.client.Do(req)
		if err != nil {
			return fmt.Errorf("probe %s: %w", printer.ID, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("probe %s: unexpected status %d", printer.ID, resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			return fmt.Errorf("probe %s: decode status: %w", printer.ID, err)
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), probeRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return statusResponse{}, err
	}
	return status, nil
}

// mapState normalizes the state strings different printer firmwares
// report into the manager's states.
func mapState(raw string) State {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "printing", "busy":
		return StatePrinting
	case "paused", "attention":
		return StatePaused
	case "offline":
		return StateOffline
	default:
		return StateIdle
	}
}
