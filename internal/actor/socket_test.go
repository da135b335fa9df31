package actor

import (
	"context"
	"testing"
	"time"

	"github.com/campushub/notifyhub/internal/domain"
)

func connectFixture(t *testing.T, f *actorFixture, userID string) (string, *fakeTransport) {
	t.Helper()
	transport := &fakeTransport{}
	connID, err := f.actor.Connect(context.Background(), userID, Principal{UserID: userID, Role: RoleStudent}, transport, "", "")
	if err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	return connID, transport
}

func TestSocketPingRepliesPong(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	connID, _ := connectFixture(t, f, "user-1")

	reply := f.actor.HandleSocketMessage(context.Background(), connID, []byte(`{"type":"ping"}`))
	event, ok := reply.(socketEvent)
	if !ok {
		t.Fatalf("expected socketEvent reply, got %T", reply)
	}
	if event.Type != eventPong {
		t.Errorf("expected pong, got %q", event.Type)
	}
}

func TestSocketFrameTouchesConnection(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	connID, _ := connectFixture(t, f, "user-1")

	f.advance(4 * time.Minute)
	f.actor.HandleSocketMessage(context.Background(), connID, []byte(`{"type":"ping"}`))
	f.advance(4 * time.Minute)

	// 8 minutes since connect but only 4 since the last frame.
	if evicted := f.actor.Cleanup(); evicted != 0 {
		t.Errorf("active connection should not be evicted, got %d", evicted)
	}
}

func TestSocketMarkReadOwnership(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	connID, _ := connectFixture(t, f, "user-1")

	reply := f.actor.HandleSocketMessage(context.Background(), connID, []byte(`{"type":"mark-read","messageId":"msg-1"}`))
	event := reply.(socketEvent)
	if event.Type != eventMarkedRead {
		t.Fatalf("expected marked-read, got %q (%s)", event.Type, event.Error)
	}

	f.store.markReadErr = domain.ErrUnauthorized
	reply = f.actor.HandleSocketMessage(context.Background(), connID, []byte(`{"type":"mark-read","messageId":"msg-2"}`))
	event = reply.(socketEvent)
	if event.Type != eventError {
		t.Fatalf("expected error event for foreign message, got %q", event.Type)
	}
}

func TestSocketMarkReadRequiresMessageID(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	connID, _ := connectFixture(t, f, "user-1")

	reply := f.actor.HandleSocketMessage(context.Background(), connID, []byte(`{"type":"mark-read"}`))
	event := reply.(socketEvent)
	if event.Type != eventError {
		t.Errorf("expected error event, got %q", event.Type)
	}
}

func TestSocketGetNotificationsReturnsHistory(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.store.listItems = []domain.Message{{ID: "msg-1", UserID: "user-1", Type: domain.TypeApproval, Title: "Approved"}}
	f.store.listTotal = 1
	connID, _ := connectFixture(t, f, "user-1")

	reply := f.actor.HandleSocketMessage(context.Background(), connID, []byte(`{"type":"get-notifications","limit":10}`))
	event := reply.(socketEvent)
	if event.Type != eventNotifications {
		t.Fatalf("expected notifications event, got %q", event.Type)
	}
	page, ok := event.Data.(historyPage)
	if !ok {
		t.Fatalf("expected historyPage data, got %T", event.Data)
	}
	if len(page.Items) != 1 || page.Total != 1 {
		t.Errorf("unexpected page: %d items, total %d", len(page.Items), page.Total)
	}
}

func TestSocketSubscribeFiltersDelivery(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	connID, transport := connectFixture(t, f, "user-1")

	reply := f.actor.HandleSocketMessage(ctx, connID, []byte(`{"type":"subscribe","types":["APPROVAL"]}`))
	if event := reply.(socketEvent); event.Type != eventSubscribed {
		t.Fatalf("expected subscribed ack, got %q", event.Type)
	}

	announcement := liveMessage("user-1")
	if _, err := f.actor.Send(ctx, announcement); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if got := transport.writeCount(); got != 0 {
		t.Fatalf("filtered type should not be written, got %d writes", got)
	}

	approval := liveMessage("user-1")
	approval.Type = domain.TypeApproval
	if _, err := f.actor.Send(ctx, approval); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if got := transport.writeCount(); got != 1 {
		t.Errorf("subscribed type should be written, got %d writes", got)
	}
}

func TestSocketUnknownFrameIgnored(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	connID, _ := connectFixture(t, f, "user-1")

	if reply := f.actor.HandleSocketMessage(context.Background(), connID, []byte(`{"type":"dance"}`)); reply != nil {
		t.Errorf("unknown frame should be ignored, got %v", reply)
	}
	if reply := f.actor.HandleSocketMessage(context.Background(), connID, []byte(`not json`)); reply != nil {
		t.Errorf("malformed frame should be ignored, got %v", reply)
	}
}

func TestSocketFrameForUnknownConnectionIgnored(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if reply := f.actor.HandleSocketMessage(context.Background(), "nope", []byte(`{"type":"ping"}`)); reply != nil {
		t.Errorf("frame for unregistered connection should be ignored, got %v", reply)
	}
}
