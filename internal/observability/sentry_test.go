package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/carprice-ai-go/internal/config"
)

type recordingTransport struct {
	events []*sentry.Event
}

func (t *recordingTransport) Configure(sentry.ClientOptions) {}
func (t *recordingTransport) SendEvent(event *sentry.Event) { t.events = append(t.events, event) }
func (t *recordingTransport) Flush(time.Duration) bool { return true }
func (t *recordingTransport) FlushWithContext(context.Context) bool { return true }
func (t *recordingTransport) Close() {}

func TestInitSentry_DisabledIsNoop(t *testing.T) {
	assert.NoError(t, InitSentry(config.SentryConfig{Enabled: false, DSN: "https://key@example.com/1"}, "v1", "test"))
	assert.NoError(t, InitSentry(config.SentryConfig{Enabled: true}, "v1", "test"))
}

func TestInitSentry_InvalidDSN(t *testing.T) {
	err := InitSentry(config.SentryConfig{Enabled: true, DSN: "not a dsn"}, "v1", "test")
	assert.Error(t, err)
}

func TestCaptureException_UsesContextHub(t *testing.T) {
	transport := &recordingTransport{}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:       "https://public@example.com/1",
		Transport: transport,
	})
	require.NoError(t, err)

	hub := sentry.NewHub(client, sentry.NewScope())
	ctx := sentry.SetHubOnContext(context.Background(), hub)

	CaptureException(ctx, nil)
	assert.Empty(t, transport.events)

	CaptureException(ctx, errors.New("valuation service unavailable"))
	require.Len(t, transport.events, 1)
	require.NotEmpty(t, transport.events[0].Exception)
	assert.Equal(t, "valuation service unavailable", transport.events[0].Exception[0].Value)
}

func TestFlush_ExpiredDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), -time.Second)
	defer cancel()
	Flush(ctx)
}
