package notification

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shoe-market/internal/config"
	"shoe-market/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeMailer struct {
	mu       sync.Mutex
	sent     []Message
	err      error
	delay    time.Duration
	inFlight int32
	peak     int32
}

func (f *fakeMailer) Send(ctx context.Context, msg Message) error {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&f.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&f.peak, peak, n) {
			break
		}
	}

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return f.err
	}

	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	return nil
}

func TestWelcomeRenderer_Render(t *testing.T) {
	renderer, err := NewWelcomeRenderer("https://shoesteraj.pages.dev/")
	require.NoError(t, err)

	msg, err := renderer.Render("sneakerhead", "Ana", "ana@example.com")
	require.NoError(t, err)

	assert.Equal(t, "ana@example.com", msg.To)
	assert.Equal(t, "Welcome to Shoesteraj, Ana!", msg.Subject)
	assert.Contains(t, msg.TextBody, "https://shoesteraj.pages.dev/")
	assert.Contains(t, msg.TextBody, `"sneakerhead"`)
	assert.Contains(t, msg.HTMLBody, `href="https://shoesteraj.pages.dev/"`)
}

func TestWelcomeRenderer_EscapesHTML(t *testing.T) {
	renderer, err := NewWelcomeRenderer("https://shoesteraj.pages.dev/")
	require.NoError(t, err)

	msg, err := renderer.Render("<script>", "", "x@example.com")
	require.NoError(t, err)

	assert.NotContains(t, msg.HTMLBody, "<script>")
	assert.Equal(t, "Welcome to Shoesteraj, <script>!", msg.Subject)
}

func TestBuildMessage(t *testing.T) {
	gm, err := buildMessage("Shoesteraj <noreply@example.com>", Message{
		To: "ana@example.com", Subject: "Hi", TextBody: "plain", HTMLBody: "<b>html</b>",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = gm.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "To: ana@example.com")
	assert.Contains(t, raw, "multipart/alternative")
	assert.Contains(t, raw, "text/html")

	_, err = buildMessage("a@example.com", Message{Subject: "Hi", TextBody: "x"})
	assert.ErrorIs(t, err, ErrNoRecipient)

	_, err = buildMessage("a@example.com", Message{To: "b@example.com"})
	assert.Error(t, err)
}

func TestNewSMTPMailer_RequiresSender(t *testing.T) {
	_, err := NewSMTPMailer(config.SMTPConfig{Host: "smtp.example.com", Port: 587})
	assert.Error(t, err)

	mailer, err := NewSMTPMailer(config.SMTPConfig{Host: "smtp.example.com", Port: 465, SenderEmail: "a@example.com", Encryption: "ssl"})
	require.NoError(t, err)
	assert.True(t, mailer.(*smtpMailer).dialer.SSL)
}

func TestBackgroundDispatcher_DeliversAndCounts(t *testing.T) {
	mailer := &fakeMailer{}
	m := metrics.New()
	d := NewBackgroundDispatcher(mailer, 2, time.Second, m, zap.NewNop())

	for i := 0; i < 5; i++ {
		d.Dispatch(Message{To: "a@example.com", Subject: "Hi", TextBody: "x"})
	}
	require.NoError(t, d.Close(context.Background()))

	assert.Len(t, mailer.sent, 5)
	assert.Equal(t, float64(5), testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("sent")))
}

func TestBackgroundDispatcher_BoundsConcurrency(t *testing.T) {
	mailer := &fakeMailer{delay: 20 * time.Millisecond}
	d := NewBackgroundDispatcher(mailer, 2, 5*time.Second, nil, zap.NewNop())

	for i := 0; i < 8; i++ {
		d.Dispatch(Message{To: "a@example.com", TextBody: "x"})
	}
	require.NoError(t, d.Close(context.Background()))

	assert.LessOrEqual(t, atomic.LoadInt32(&mailer.peak), int32(2))
	assert.Len(t, mailer.sent, 8)
}

func TestBackgroundDispatcher_FailureIsLoggedNotPropagated(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	mailer := &fakeMailer{err: errors.New("535 authentication failed")}
	m := metrics.New()
	d := NewBackgroundDispatcher(mailer, 1, time.Second, m, zap.New(core))

	start := time.Now()
	d.Dispatch(Message{To: "ana@example.com", TextBody: "x"})
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	require.NoError(t, d.Close(context.Background()))

	failures := logs.FilterMessage("Failed to send email").All()
	require.Len(t, failures, 1)
	assert.Equal(t, "ana@example.com", failures[0].ContextMap()["to"])
	assert.Equal(t, float64(1), testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("failed")))
}

func TestBackgroundDispatcher_DropsAfterClose(t *testing.T) {
	mailer := &fakeMailer{}
	d := NewBackgroundDispatcher(mailer, 1, time.Second, nil, zap.NewNop())
	require.NoError(t, d.Close(context.Background()))

	d.Dispatch(Message{To: "a@example.com", TextBody: "x"})
	require.NoError(t, d.Close(context.Background()))
	assert.Empty(t, mailer.sent)
}

func TestBackgroundDispatcher_CloseHonoursContext(t *testing.T) {
	mailer := &fakeMailer{delay: 200 * time.Millisecond}
	d := NewBackgroundDispatcher(mailer, 1, time.Second, nil, zap.NewNop())
	d.Dispatch(Message{To: "a@example.com", TextBody: "x"})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)

	require.NoError(t, d.Close(context.Background()))
}

func TestSMTPMailer_SendWaitsForSessionToEnd(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	const stall = 150 * time.Millisecond
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		time.Sleep(stall)
		conn.Close()
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	mailer, err := NewSMTPMailer(config.SMTPConfig{Host: "127.0.0.1", Port: port, SenderEmail: "a@example.com"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = mailer.Send(ctx, Message{To: "b@example.com", TextBody: "x"})
	assert.Error(t, err, "the server hung up without a greeting")
	assert.GreaterOrEqual(t, time.Since(start), stall-20*time.Millisecond, "Send must not return while the session is open")
}

func TestSMTPMailer_CancelledBeforeDial(t *testing.T) {
	mailer, err := NewSMTPMailer(config.SMTPConfig{Host: "127.0.0.1", Port: 1, SenderEmail: "a@example.com"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, mailer.Send(ctx, Message{To: "b@example.com", TextBody: "x"}), context.Canceled)
}

func TestBackgroundDispatcher_SlowSendKeepsItsSlot(t *testing.T) {
	mailer := &fakeMailer{delay: 100 * time.Millisecond}
	m := metrics.New()
	d := NewBackgroundDispatcher(mailer, 1, 20*time.Millisecond, m, zap.NewNop())

	d.Dispatch(Message{To: "first@example.com", TextBody: "x"})
	time.Sleep(5 * time.Millisecond)
	d.Dispatch(Message{To: "second@example.com", TextBody: "x"})
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, int32(1), atomic.LoadInt32(&mailer.peak))
	require.Len(t, mailer.sent, 1, "Close waits for the running send")
	assert.Equal(t, "first@example.com", mailer.sent[0].To)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("sent")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("dropped")))
}
