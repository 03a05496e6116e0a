package connectivity

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// ProberOption configures optional behaviour for the Prober.
type ProberOption func(*Prober)

// WithProberLogger overrides the logger used to report transitions.
func WithProberLogger(logger *log.Logger) ProberOption {
	return func(p *Prober) {
		p.logger = logger
	}
}

// WithProbeClient overrides the HTTP client used for probes.
func WithProbeClient(hc *http.Client) ProberOption {
	return func(p *Prober) {
		p.client = hc
	}
}

// Prober feeds a Monitor by checking that the remote log's host answers HTTP at all.
// Any response counts as online; only transport failures count as offline.
type Prober struct {
	target   string
	monitor  *Monitor
	interval time.Duration
	client   *http.Client
	logger   *log.Logger
}

// NewProber builds a prober for the host serving endpoint.
func NewProber(endpoint string, monitor *Monitor, interval, timeout time.Duration, opts ...ProberOption) (*Prober, error) {
	target, err := probeTarget(endpoint)
	if err != nil {
		return nil, err
	}
	p := &Prober{
		target:   target,
		monitor:  monitor,
		interval: interval,
		client:   &http.Client{Timeout: timeout},
		logger:   log.New(log.Writer(), "[connectivity] ", log.LstdFlags|log.Lmsgprefix),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func probeTarget(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("parse endpoint: %q is not an absolute URL", endpoint)
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}).String(), nil
}

// Probe checks reachability once and updates the monitor.
func (p *Prober) Probe(ctx context.Context) bool {
	online := p.reachable(ctx)
	if p.monitor.Set(online) {
		p.logger.Printf("remote log %s is now %s", p.target, stateName(online))
	}
	return online
}

func (p *Prober) reachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.target, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return true
}

// Run probes immediately and then on every interval until ctx is cancelled.
func (p *Prober) Run(ctx context.Context) {
	p.Probe(ctx)
	if p.interval <= 0 {
		return
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Probe(ctx)
		}
	}
}

func stateName(online bool) string {
	if online {
		return BecameOnline.String()
	}
	return BecameOffline.String()
}
