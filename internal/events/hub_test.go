package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestDisconnectClosesSendChannel(t *testing.T) {
	hub := NewHub(zap.NewNop())
	cl := &client{send: make(chan []byte, 1)}

	hub.subscribe(TopicTransfers, cl)
	hub.disconnect(cl)

	_, open := <-cl.send
	assert.False(t, open, "send channel must be closed on disconnect so the write pump exits")
	assert.Empty(t, hub.topics)
}

func TestSlowClientOnTwoTopicsDroppedOnce(t *testing.T) {
	hub := NewHub(zap.NewNop())
	cl := &client{send: make(chan []byte, 1)}

	hub.subscribe(TopicTransfers, cl)
	hub.subscribe(TopicCheckouts, cl)

	// First publish fills the buffer, second finds it full and drops the
	// client from both topics.
	hub.Publish(TopicTransfers, TransferRequested, 1, nil)
	hub.Publish(TopicTransfers, TransferRequested, 2, nil)

	assert.NotPanics(t, func() {
		hub.Publish(TopicCheckouts, CheckoutCreated, 3, nil)
	})

	_, open := <-cl.send
	assert.True(t, open, "buffered event is still readable")
	_, open = <-cl.send
	assert.False(t, open, "send channel closed exactly once after the drop")
}

func TestDroppedClientCannotResubscribe(t *testing.T) {
	hub := NewHub(zap.NewNop())
	cl := &client{send: make(chan []byte)}

	hub.subscribe(TopicTransfers, cl)
	hub.Publish(TopicTransfers, TransferRequested, 1, nil) // unbuffered, drops immediately

	hub.subscribe(TopicTransfers, cl)

	assert.Empty(t, hub.topics)
	assert.NotPanics(t, func() {
		hub.Publish(TopicTransfers, TransferRequested, 2, nil)
	})
}
