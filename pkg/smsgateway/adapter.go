package smsgateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds every provider call
const DefaultTimeout = 10 * time.Second

// Observer receives one callback per provider call
type Observer interface {
	ObserveSend(backend string, ok bool, elapsed time.Duration)
}

// Adapter is the single entry point for sending. It normalizes the phone,
// applies the call timeout and turns every failure into an ok=false result.
type Adapter struct {
	timeout  time.Duration
	log      *logrus.Entry
	observer Observer
}

// AdapterOption customizes an Adapter
type AdapterOption func(*Adapter)

// WithTimeout overrides DefaultTimeout
func WithTimeout(d time.Duration) AdapterOption {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithObserver reports call outcomes to o
func WithObserver(o Observer) AdapterOption {
	return func(a *Adapter) { a.observer = o }
}

// WithLogger sets the logger used for send outcomes
func WithLogger(l *logrus.Entry) AdapterOption {
	return func(a *Adapter) {
		if l != nil {
			a.log = l
		}
	}
}

// NewAdapter creates an Adapter
func NewAdapter(opts ...AdapterOption) *Adapter {
	a := &Adapter{
		timeout: DefaultTimeout,
		log:     logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type outcome struct {
	result SendResult
	err    error
}

// Send delivers message through backend. It never returns an error and
// never panics: transport errors, provider rejections, malformed replies,
// timeouts and backend panics all come back as ok=false with Error set.
// A timed-out call is abandoned, not waited on.
func (a *Adapter) Send(ctx context.Context, backend Backend, phone, message string) SendResult {
	segments := SegmentCount(message)
	log := a.log.WithField("backend", backend.Name())

	normalized, err := NormalizePhone(phone)
	if err != nil {
		log.WithField("phone", RedactPhone(phone)).Warn("Rejected invalid phone number")
		return SendResult{Segments: segments, Error: err.Error()}
	}
	log = log.WithField("phone", RedactPhone(normalized))

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("%s backend panicked: %v", backend.Name(), p)}
			}
		}()
		res, err := backend.Send(callCtx, normalized, message)
		done <- outcome{result: res, err: err}
	}()

	var o outcome
	select {
	case o = <-done:
	case <-callCtx.Done():
		o = outcome{err: callCtx.Err()}
	}
	elapsed := time.Since(start)

	res := o.result
	if res.Segments == 0 {
		res.Segments = segments
	}
	switch {
	case o.err != nil:
		res.OK = false
		res.Error = describe(o.err, a.timeout)
	case !res.OK && res.Error == "":
		res.Error = "send failed without provider detail"
	}

	if a.observer != nil {
		a.observer.ObserveSend(backend.Name(), res.OK, elapsed)
	}
	if res.OK {
		log.WithFields(logrus.Fields{
			"provider_message_id": res.ProviderMessageID,
			"elapsed_ms":          elapsed.Milliseconds(),
		}).Debug("SMS sent")
	} else {
		log.WithField("error", res.Error).Warn("SMS send failed")
	}
	return res
}

func describe(err error, timeout time.Duration) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("gateway timeout after %s", timeout)
	}
	if errors.Is(err, context.Canceled) {
		return "send cancelled"
	}
	return err.Error()
}
