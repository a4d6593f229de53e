package smsgateway

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemoBackendAlwaysSucceedsAtRateOne(t *testing.T) {
	d := NewDemoBackend(DemoConfig{SuccessRate: 1})
	for i := 0; i < 20; i++ {
		res, err := d.Send(context.Background(), "9876543210", "hi")
		require.NoError(t, err)
		assert.True(t, res.OK)
		assert.True(t, strings.HasPrefix(res.ProviderMessageID, "DEMO-"))
	}
}

func TestDemoBackendForcedFailure(t *testing.T) {
	d := NewDemoBackend(DemoConfig{SuccessRate: 1}, WithForcedFailures("+91 90000 00002"))

	_, err := d.Send(context.Background(), "9000000002", "hi")
	assert.ErrorIs(t, err, ErrSimulatedFailure)

	res, err := d.Send(context.Background(), "9000000001", "hi")
	require.NoError(t, err)
	assert.True(t, res.OK)
}

func TestDemoBackendRateIsRoughlyHonoured(t *testing.T) {
	d := NewDemoBackend(DemoConfig{SuccessRate: 0.9}, WithRandSource(rand.NewSource(42)))
	ok := 0
	for i := 0; i < 2000; i++ {
		if _, err := d.Send(context.Background(), "9876543210", "hi"); err == nil {
			ok++
		}
	}
	assert.InDelta(t, 1800, ok, 100)
}

func TestDemoBackendHonoursContext(t *testing.T) {
	d := NewDemoBackend(DemoConfig{SuccessRate: 1, Delay: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := d.Send(ctx, "9876543210", "hi")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDemoBackendFromCredentials(t *testing.T) {
	b, err := NewDemoBackendFromCredentials(DefaultDemoConfig(), Credentials{"successRate": "0", "delayMillis": "0"})
	require.NoError(t, err)
	_, err = b.Send(context.Background(), "9876543210", "hi")
	assert.ErrorIs(t, err, ErrSimulatedFailure)

	_, err = NewDemoBackendFromCredentials(DefaultDemoConfig(), Credentials{"successRate": "2"})
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry(DemoConfig{SuccessRate: 1}, time.Second)
	assert.Equal(t, []string{"demo", "msg91", "textlocal", "twilio"}, r.Names())
	assert.True(t, r.Has("MSG91"))

	_, err := r.Build("carrier-pigeon", nil)
	assert.ErrorIs(t, err, ErrUnknownBackend)

	_, err = r.Build(BackendMSG91, Credentials{"authKey": "k"})
	assert.EqualError(t, err, `msg91: missing credential "senderId"`)

	b, err := r.Build(BackendDemo, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendDemo, b.Name())

	b, err = r.Build(BackendTwilio, Credentials{"accountSid": "AC1", "authToken": "t", "from": "+15550100"})
	require.NoError(t, err)
	assert.Equal(t, BackendTwilio, b.Name())
}
