package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GenuineDickies/pat-sub001/infra/logger"
)

type mockToken struct {
	err error
}

func (t *mockToken) Wait() bool                     { return true }
func (t *mockToken) WaitTimeout(time.Duration) bool { return true }
func (t *mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *mockToken) Error() error { return t.err }

type mockClient struct {
	topics   []string
	payloads [][]byte
	failures int
}

func (c *mockClient) IsConnected() bool   { return true }
func (c *mockClient) Connect() paho.Token { return &mockToken{} }
func (c *mockClient) Disconnect(uint)     {}
func (c *mockClient) Publish(topic string, _ byte, _ bool, payload interface{}) paho.Token {
	c.topics = append(c.topics, topic)
	c.payloads = append(c.payloads, payload.([]byte))
	if c.failures > 0 {
		c.failures--
		return &mockToken{err: errors.New("broker unavailable")}
	}
	return &mockToken{}
}

func newTestNotifier(cli pahoClient) *MQTTNotifier {
	return &MQTTNotifier{
		cli:         cli,
		topicPrefix: "notify/driver",
		maxRetries:  3,
		backoff:     time.Millisecond,
		log:         logger.NopLogger{},
	}
}

func TestNotifyDriverAssigned_PublishesToUserTopic(t *testing.T) {
	cli := &mockClient{}
	n := newTestNotifier(cli)

	err := n.NotifyDriverAssigned(context.Background(), 77, 42, "You have been assigned to service request #42")
	require.NoError(t, err)
	require.Len(t, cli.topics, 1)
	assert.Equal(t, "notify/driver/77/assignment", cli.topics[0])

	var msg assignmentMessage
	require.NoError(t, json.Unmarshal(cli.payloads[0], &msg))
	assert.Equal(t, int64(77), msg.UserID)
	assert.Equal(t, int64(42), msg.RequestID)
	assert.NotEmpty(t, msg.MessageID)
}

func TestNotifyDriverAssigned_RetriesOnFailure(t *testing.T) {
	cli := &mockClient{failures: 2}
	n := newTestNotifier(cli)

	err := n.NotifyDriverAssigned(context.Background(), 77, 42, "summary")
	require.NoError(t, err)
	assert.Len(t, cli.topics, 3)
}

func TestNotifyDriverAssigned_GivesUpAfterRetries(t *testing.T) {
	cli := &mockClient{failures: 10}
	n := newTestNotifier(cli)

	err := n.NotifyDriverAssigned(context.Background(), 77, 42, "summary")
	require.Error(t, err)
	assert.Len(t, cli.topics, 4) // initial attempt plus three retries
}

func TestNotifyDriverAssigned_ContextCancel(t *testing.T) {
	cli := &mockClient{failures: 10}
	n := newTestNotifier(cli)
	n.backoff = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := n.NotifyDriverAssigned(ctx, 77, 42, "summary")
	require.ErrorIs(t, err, context.Canceled)
}
