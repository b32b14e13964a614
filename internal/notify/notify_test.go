package notify

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/ticketd/internal/ticket"
)

// startTestNATSServer starts an embedded NATS server for testing.
func startTestNATSServer(t *testing.T) *natsserver.Server {
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()

	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})

	return server
}

func TestValidateChannel(t *testing.T) {
	assert.NoError(t, ValidateChannel("alerts"))
	for _, bad := range []string{"", "a.b", "with space", "*", ">"} {
		err := ValidateChannel(bad)
		assert.True(t, ticket.IsKind(err, ticket.KindNotificationError), "channel %q", bad)
	}
}

func TestNATS_Notify(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	sub, err := nc.SubscribeSync("tickets.notify.>")
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	n := NewNATS(nc, "")
	assert.Equal(t, "tickets.notify.alerts", n.Subject("alerts"))
	require.NoError(t, n.Notify(context.Background(), "alerts", "T-1 needs attention"))

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "tickets.notify.alerts", msg.Subject)

	var got Message
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, Message{Channel: "alerts", Message: "T-1 needs attention"}, got)
}

func TestNATS_ClosedConnection(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	nc.Close()

	err = NewNATS(nc, "").Notify(context.Background(), "alerts", "x")
	assert.True(t, ticket.IsKind(err, ticket.KindNotificationError))
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafka_Notify(t *testing.T) {
	w := &fakeWriter{}
	k := &Kafka{writer: w}

	require.NoError(t, k.Notify(context.Background(), "escalations", "T-3 escalated"))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "escalations", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"channel":"escalations","message":"T-3 escalated"}`, string(w.msgs[0].Value))

	w.err = errors.New("leader not available")
	err := k.Notify(context.Background(), "escalations", "again")
	assert.True(t, ticket.IsKind(err, ticket.KindNotificationError))
	require.NoError(t, k.Close())
}

func TestKafka_Broker(t *testing.T) {
	brokers := os.Getenv("TICKETD_TEST_KAFKA_BROKERS")
	if brokers == "" {
		t.Skip("TICKETD_TEST_KAFKA_BROKERS not set")
	}
	k := NewKafka(strings.Split(brokers, ","), "ticketd-notifications-test")
	defer k.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, k.Notify(ctx, "alerts", "integration"))
}

func TestLog_Notify(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLog(zap.New(core))

	require.NoError(t, n.Notify(context.Background(), "review", "please look"))
	entries := logs.FilterMessage("notification").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "review", entries[0].ContextMap()["channel"])
}

func TestMirror_Notify(t *testing.T) {
	ctx := context.Background()

	var copied []string
	copyTo := Func(func(_ context.Context, channel, _ string) error {
		copied = append(copied, channel)
		return nil
	})
	ok := Func(func(context.Context, string, string) error { return nil })
	down := Func(func(context.Context, string, string) error {
		return ticket.Errorf(ticket.KindNotificationError, "nats delivery to alerts failed: no servers")
	})

	require.NoError(t, Mirror{Primary: ok, Copy: copyTo}.Notify(ctx, "alerts", "x"))

	err := Mirror{Primary: down, Copy: copyTo}.Notify(ctx, "alerts", "x")
	assert.True(t, ticket.IsKind(err, ticket.KindNotificationError), "primary failure is reported")
	assert.Equal(t, []string{"alerts", "alerts"}, copied, "the copy is written either way")

	failingCopy := Func(func(context.Context, string, string) error { return errors.New("disk full") })
	assert.NoError(t, Mirror{Primary: ok, Copy: failingCopy}.Notify(ctx, "review", "x"))
	assert.NoError(t, Mirror{Primary: ok}.Notify(ctx, "review", "x"))
}
