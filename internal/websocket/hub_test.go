package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kirifer/ITS-certificate-generator/internal/notify"
)

func newTestClient(hub *Hub, email string) *Client {
	return &Client{
		ID:    email,
		Email: email,
		Hub:   hub,
		Send:  make(chan []byte, 8),
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := newTestClient(hub, "a@example.com")
	hub.Register <- client

	assert.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	hub.Unregister <- client

	assert.Eventually(t, func() bool {
		return hub.ClientCount() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestBroadcastToEmail(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	target := newTestClient(hub, "approver@example.com")
	other := newTestClient(hub, "other@example.com")
	hub.Register <- target
	hub.Register <- other

	assert.Eventually(t, func() bool {
		return hub.ClientCount() == 2
	}, time.Second, 10*time.Millisecond)

	// 邮箱匹配不区分大小写
	hub.BroadcastToEmail("APPROVER@Example.COM", []byte("hello"))

	select {
	case msg := <-target.Send:
		assert.Equal(t, "hello", string(msg))
	case <-time.After(time.Second):
		t.Fatal("target client did not receive message")
	}

	select {
	case <-other.Send:
		t.Fatal("unrelated client received message")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNotifyApprovalRequested(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := newTestClient(hub, "approver@example.com")
	hub.Register <- client

	assert.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	event := &notify.ApprovalRequestedEvent{
		CertificateID:   "cert-1",
		ApproverName:    "Jane",
		ApproverEmail:   "approver@example.com",
		RecipientName:   "John",
		CertificateType: "General Certificate",
	}
	err := hub.NotifyApprovalRequested(context.Background(), event)
	require.NoError(t, err)

	select {
	case msg := <-client.Send:
		var payload map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(msg, &payload))
		assert.JSONEq(t, `"approval_requested"`, string(payload["type"]))
	case <-time.After(time.Second):
		t.Fatal("client did not receive notification")
	}
}

func TestNotifyApprovalResolved(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := newTestClient(hub, "approver@example.com")
	hub.Register <- client
	other := newTestClient(hub, "other@example.com")
	hub.Register <- other

	assert.Eventually(t, func() bool {
		return hub.ClientCount() == 2
	}, time.Second, 10*time.Millisecond)

	event := &notify.ApprovalResolvedEvent{
		CertificateID:   "cert-1",
		Outcome:         notify.OutcomeApproved,
		ApproverName:    "Jane",
		ApproverEmail:   "Approver@Example.com",
		RecipientName:   "John",
		CertificateType: "General Certificate",
	}
	err := hub.NotifyApprovalResolved(context.Background(), event)
	require.NoError(t, err)

	select {
	case msg := <-client.Send:
		var payload map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(msg, &payload))
		assert.JSONEq(t, `"approval_resolved"`, string(payload["type"]))
		assert.Contains(t, string(payload["event"]), `"outcome":"approved"`)
	case <-time.After(time.Second):
		t.Fatal("client did not receive resolution")
	}

	select {
	case <-other.Send:
		t.Fatal("unrelated client received resolution")
	case <-time.After(50 * time.Millisecond):
	}
}
