package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedDelivery struct {
	UserID string
	Event  string
}

type recordingSink struct {
	mu    sync.Mutex
	got   []recordedDelivery
	block chan struct{}
}

func (r *recordingSink) Deliver(userID, event string, payload interface{}) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.got = append(r.got, recordedDelivery{UserID: userID, Event: event})
	r.mu.Unlock()
}

func (r *recordingSink) events() []recordedDelivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedDelivery(nil), r.got...)
}

func TestHub_DeliversInOrder(t *testing.T) {
	sink := &recordingSink{}
	hub := NewHub(sink, 16)
	hub.Start()

	hub.Publish("bob", "newMessage", nil)
	hub.Publish("bob", "messagesRead", nil)
	hub.Publish("", "ignored", nil)
	hub.Close()

	assert.Equal(t, []recordedDelivery{
		{UserID: "bob", Event: "newMessage"},
		{UserID: "bob", Event: "messagesRead"},
	}, sink.events())
}

func TestHub_DropsWhenFull(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	hub := NewHub(sink, 1)
	hub.Start()

	// first event is picked up by the worker and parks on the sink
	hub.Publish("bob", "first", nil)
	require.Eventually(t, func() bool { return len(hub.queue) == 0 }, time.Second, 5*time.Millisecond)

	hub.Publish("bob", "second", nil)

	done := make(chan struct{})
	go func() {
		hub.Publish("bob", "third", nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full queue")
	}

	close(sink.block)
	hub.Close()

	assert.Equal(t, []recordedDelivery{
		{UserID: "bob", Event: "first"},
		{UserID: "bob", Event: "second"},
	}, sink.events())
}

func TestHub_PublishAfterCloseIsDropped(t *testing.T) {
	sink := &recordingSink{}
	hub := NewHub(sink, 4)
	hub.Start()
	hub.Close()

	hub.Publish("bob", "late", nil)
	assert.Empty(t, sink.events())
}

func TestHub_CloseWithoutStart(t *testing.T) {
	sink := &recordingSink{}
	hub := NewHub(sink, 4)
	hub.Publish("bob", "queued", nil)

	done := make(chan struct{})
	go func() {
		hub.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close blocked on a hub that was never started")
	}
	assert.Equal(t, []recordedDelivery{{UserID: "bob", Event: "queued"}}, sink.events())

	hub.Start()
	hub.Close()
}

func TestBearerToken(t *testing.T) {
	header := http.Header{}
	assert.Equal(t, "", bearerToken(url.Values{}, header))

	assert.Equal(t, "q1", bearerToken(url.Values{"token": {"q1"}}, header))
	assert.Equal(t, "q2", bearerToken(url.Values{"auth_token": {"q2"}}, header))

	header.Set("Authorization", "Bearer h1")
	assert.Equal(t, "h1", bearerToken(url.Values{}, header))
	assert.Equal(t, "q1", bearerToken(url.Values{"token": {"q1"}}, header))

	header.Set("Authorization", "Basic abc")
	assert.Equal(t, "", bearerToken(url.Values{}, header))
}

func newTestGateway() *Gateway {
	return NewGateway(func(token string) (string, error) {
		if token == "good-alice" {
			return "alice", nil
		}
		return "", errors.New("bad token")
	}, nil)
}

func TestGateway_HandshakeAndPresence(t *testing.T) {
	g := newTestGateway()
	defer g.Close()

	_, err := g.open("c0", url.Values{}, http.Header{})
	assert.ErrorIs(t, err, ErrNoCredential)

	_, err = g.open("c0", url.Values{"token": {"forged"}}, http.Header{})
	assert.ErrorIs(t, err, ErrInvalidCredential)
	assert.False(t, g.IsOnline("alice"))

	s1, err := g.open("c1", url.Values{"token": {"good-alice"}}, http.Header{})
	require.NoError(t, err)
	assert.Equal(t, "alice", s1.UserID)
	assert.Equal(t, StateAuthenticated, s1.State())

	_, err = g.open("c2", url.Values{"auth_token": {"good-alice"}}, http.Header{})
	require.NoError(t, err)
	assert.True(t, g.IsOnline("alice"))

	// one tab closing keeps the user online
	require.NotNil(t, g.close("c1"))
	assert.True(t, g.IsOnline("alice"))
	assert.Equal(t, StateDisconnected, s1.State())

	require.NotNil(t, g.close("c2"))
	assert.False(t, g.IsOnline("alice"))

	assert.Nil(t, g.close("c2"))
}

func TestGateway_DeliverToOfflineUserIsDropped(t *testing.T) {
	g := newTestGateway()
	defer g.Close()

	assert.NotPanics(t, func() {
		g.Deliver("nobody", "newMessage", map[string]string{"x": "y"})
	})
}

func TestEncodeEnvelope(t *testing.T) {
	body, err := encodeEnvelope("bob", "newMessage", map[string]string{"conversationId": "c1"})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(body, &env))
	assert.Equal(t, "bob", env.UserID)
	assert.Equal(t, "newMessage", env.Event)
	assert.JSONEq(t, `{"conversationId":"c1"}`, string(env.Payload))

	_, err = encodeEnvelope("bob", "bad", make(chan int))
	assert.Error(t, err)
}
