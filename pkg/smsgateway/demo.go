package smsgateway

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSimulatedFailure is the fixed error of the demo backend
var ErrSimulatedFailure = errors.New("simulated gateway failure")

// DemoConfig tunes the demo backend
type DemoConfig struct {
	SuccessRate float64
	Delay       time.Duration
}

// DefaultDemoConfig matches a plausible real gateway
func DefaultDemoConfig() DemoConfig {
	return DemoConfig{SuccessRate: 0.9, Delay: 300 * time.Millisecond}
}

// DemoBackend simulates a provider for environments without credentials.
// It waits for Delay and succeeds with probability SuccessRate.
type DemoBackend struct {
	cfg    DemoConfig
	forced map[string]struct{}

	mu  sync.Mutex
	rnd *rand.Rand
}

// DemoOption customizes a DemoBackend
type DemoOption func(*DemoBackend)

// WithRandSource makes outcomes reproducible
func WithRandSource(src rand.Source) DemoOption {
	return func(d *DemoBackend) { d.rnd = rand.New(src) }
}

// WithForcedFailures makes the given numbers always fail. Numbers are
// normalized before comparison.
func WithForcedFailures(phones ...string) DemoOption {
	return func(d *DemoBackend) {
		for _, p := range phones {
			if n, err := NormalizePhone(p); err == nil {
				d.forced[n] = struct{}{}
			}
		}
	}
}

// NewDemoBackend creates a DemoBackend
func NewDemoBackend(cfg DemoConfig, opts ...DemoOption) *DemoBackend {
	if cfg.SuccessRate < 0 {
		cfg.SuccessRate = 0
	}
	if cfg.SuccessRate > 1 {
		cfg.SuccessRate = 1
	}
	d := &DemoBackend{
		cfg:    cfg,
		forced: make(map[string]struct{}),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewDemoBackendFromCredentials lets a tenant override successRate and
// delayMillis through its stored credentials
func NewDemoBackendFromCredentials(base DemoConfig, creds Credentials) (Backend, error) {
	cfg := base
	if v := creds.Get("successRate"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil || rate < 0 || rate > 1 {
			return nil, errors.New("demo: successRate must be a number between 0 and 1")
		}
		cfg.SuccessRate = rate
	}
	if v := creds.Get("delayMillis"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms < 0 {
			return nil, errors.New("demo: delayMillis must be a non-negative integer")
		}
		cfg.Delay = time.Duration(ms) * time.Millisecond
	}
	return NewDemoBackend(cfg), nil
}

// Name returns the backend name
func (d *DemoBackend) Name() string { return BackendDemo }

// Send waits for the configured delay, then rolls the outcome
func (d *DemoBackend) Send(ctx context.Context, phone, message string) (SendResult, error) {
	if d.cfg.Delay > 0 {
		timer := time.NewTimer(d.cfg.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return SendResult{}, ctx.Err()
		}
	}

	if _, forced := d.forced[phone]; forced || !d.roll() {
		return SendResult{ProviderStatus: "failed"}, ErrSimulatedFailure
	}
	return SendResult{
		OK:                true,
		ProviderMessageID: "DEMO-" + uuid.NewString(),
		ProviderStatus:    "sent",
	}, nil
}

func (d *DemoBackend) roll() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rnd.Float64() < d.cfg.SuccessRate
}
