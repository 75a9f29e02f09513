package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/opensource-finance/nexis/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timeout waiting for condition")
}

func TestChannelBus(t *testing.T) {
	bus := NewChannelBus(100)
	defer bus.Close()

	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("PublishAndSubscribe", func(t *testing.T) {
		got := make(chan *domain.Message, 1)

		_, err := bus.Subscribe(ctx, tenantID, domain.TopicAssessmentCompleted, func(ctx context.Context, msg *domain.Message) error {
			got <- msg
			return nil
		})
		if err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}

		if err := bus.Publish(ctx, tenantID, domain.TopicAssessmentCompleted, []byte("hello")); err != nil {
			t.Fatalf("publish failed: %v", err)
		}

		select {
		case msg := <-got:
			if string(msg.Payload) != "hello" {
				t.Errorf("expected payload 'hello', got '%s'", string(msg.Payload))
			}
			if msg.TenantID != tenantID {
				t.Errorf("expected tenantID '%s', got '%s'", tenantID, msg.TenantID)
			}
			if msg.ID == "" {
				t.Error("expected message id")
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for message")
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		var received1, received2 atomic.Int32

		bus.Subscribe(ctx, "tenant-001", "isolation.topic", func(ctx context.Context, msg *domain.Message) error {
			received1.Add(1)
			return nil
		})
		bus.Subscribe(ctx, "tenant-002", "isolation.topic", func(ctx context.Context, msg *domain.Message) error {
			received2.Add(1)
			return nil
		})

		bus.Publish(ctx, "tenant-001", "isolation.topic", []byte("msg1"))
		waitFor(t, func() bool { return received1.Load() == 1 })

		if received2.Load() != 0 {
			t.Errorf("tenant2 should receive 0 messages, got %d", received2.Load())
		}
	})

	t.Run("AllTenants", func(t *testing.T) {
		var mu sync.Mutex
		var tenants []string

		bus.Subscribe(ctx, domain.AllTenants, "wildcard.topic", func(ctx context.Context, msg *domain.Message) error {
			mu.Lock()
			tenants = append(tenants, msg.TenantID)
			mu.Unlock()
			return nil
		})

		bus.Publish(ctx, "tenant-001", "wildcard.topic", []byte("a"))
		bus.Publish(ctx, "tenant-002", "wildcard.topic", []byte("b"))

		waitFor(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(tenants) == 2
		})

		if err := bus.Publish(ctx, domain.AllTenants, "wildcard.topic", nil); err == nil {
			t.Error("expected publishing to the wildcard tenant to fail")
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		if err := bus.Publish(ctx, "", "topic", []byte("data")); err == nil {
			t.Error("expected error for empty tenantID")
		}

		_, err := bus.Subscribe(ctx, "", "topic", func(ctx context.Context, msg *domain.Message) error {
			return nil
		})
		if err == nil {
			t.Error("expected error for empty tenantID")
		}
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		var count atomic.Int32

		sub, _ := bus.Subscribe(ctx, tenantID, "unsub.topic", func(ctx context.Context, msg *domain.Message) error {
			count.Add(1)
			return nil
		})

		bus.Publish(ctx, tenantID, "unsub.topic", []byte("msg1"))
		waitFor(t, func() bool { return count.Load() == 1 })

		sub.Unsubscribe()

		bus.mu.RLock()
		_, stillThere := bus.subscriptions[bus.makeKey(tenantID, "unsub.topic")]
		bus.mu.RUnlock()
		if stillThere {
			t.Error("expected subscription to be removed")
		}

		bus.Publish(ctx, tenantID, "unsub.topic", []byte("msg2"))
		time.Sleep(20 * time.Millisecond)

		if count.Load() != 1 {
			t.Errorf("expected 1 message after unsubscribe, got %d", count.Load())
		}
	})

	t.Run("MultipleSubscribers", func(t *testing.T) {
		var count1, count2 atomic.Int32

		bus.Subscribe(ctx, tenantID, "multi.topic", func(ctx context.Context, msg *domain.Message) error {
			count1.Add(1)
			return nil
		})
		bus.Subscribe(ctx, tenantID, "multi.topic", func(ctx context.Context, msg *domain.Message) error {
			count2.Add(1)
			return nil
		})

		bus.Publish(ctx, tenantID, "multi.topic", []byte("broadcast"))
		waitFor(t, func() bool { return count1.Load() == 1 && count2.Load() == 1 })
	})

	t.Run("Request", func(t *testing.T) {
		bus.Subscribe(ctx, tenantID, "echo", func(ctx context.Context, msg *domain.Message) error {
			return nil
		})

		reqCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err := bus.Request(reqCtx, tenantID, "echo", []byte("ping"))
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded without a reply, got %v", err)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := bus.Ping(ctx); err != nil {
			t.Errorf("ping failed: %v", err)
		}
	})

	t.Run("SubscriptionTopic", func(t *testing.T) {
		sub, _ := bus.Subscribe(ctx, tenantID, "my.topic", func(ctx context.Context, msg *domain.Message) error {
			return nil
		})

		if sub.Topic() != "my.topic" {
			t.Errorf("expected topic 'my.topic', got '%s'", sub.Topic())
		}
	})
}

func TestPublishJSONAndDecode(t *testing.T) {
	bus := NewChannelBus(10)
	defer bus.Close()

	ctx := context.Background()
	got := make(chan *domain.AssessmentCompleted, 1)

	bus.Subscribe(ctx, "tenant-001", domain.TopicAssessmentCompleted, func(ctx context.Context, msg *domain.Message) error {
		evt, err := Decode[domain.AssessmentCompleted](msg)
		if err != nil {
			return err
		}
		got <- evt
		return nil
	})

	err := PublishJSON(ctx, bus, "tenant-001", domain.TopicAssessmentCompleted, domain.AssessmentCompleted{
		AssessmentID: "asm-001",
		SubjectID:    "subject-001",
		TrustScore:   714,
		RiskLevel:    domain.RiskLow,
	})
	if err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	select {
	case evt := <-got:
		if evt.AssessmentID != "asm-001" || evt.TrustScore != 714 {
			t.Errorf("unexpected event: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	if _, err := Decode[domain.AssessmentRequest](&domain.Message{Payload: []byte("{bad")}); err == nil {
		t.Error("expected decode error")
	}
}

func TestChannelBusClose(t *testing.T) {
	bus := NewChannelBus(100)

	ctx := context.Background()
	tenantID := "tenant-001"

	started := make(chan struct{})
	var finished atomic.Bool

	bus.Subscribe(ctx, tenantID, "close.topic", func(ctx context.Context, msg *domain.Message) error {
		close(started)
		<-ctx.Done()
		finished.Store(true)
		return nil
	})

	bus.Publish(ctx, tenantID, "close.topic", []byte("data"))
	<-started

	if err := bus.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}
	if !finished.Load() {
		t.Error("expected Close to wait for running handlers")
	}

	if err := bus.Publish(ctx, tenantID, "close.topic", []byte("data")); err == nil {
		t.Error("expected error after close")
	}
	if err := bus.Ping(ctx); err == nil {
		t.Error("expected ping error after close")
	}
	if err := bus.Close(); err != nil {
		t.Errorf("second close failed: %v", err)
	}
}

func TestNATSSubject(t *testing.T) {
	b := &NATSBus{}

	tests := []struct {
		tenant string
		want   string
	}{
		{"tenant-001", "nexis.assessment.requested.tenant-001"},
		{"acme.corp", "nexis.assessment.requested.acme_corp"},
		{domain.AllTenants, "nexis.assessment.requested.*"},
	}

	for _, tt := range tests {
		if got := b.makeSubject(tt.tenant, domain.TopicAssessmentRequested); got != tt.want {
			t.Errorf("makeSubject(%q) = %q, want %q", tt.tenant, got, tt.want)
		}
	}
}

func TestNewBus(t *testing.T) {
	t.Run("ChannelType", func(t *testing.T) {
		cfg := domain.EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 50,
		}

		bus, err := New(cfg)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer bus.Close()

		if _, ok := bus.(*ChannelBus); !ok {
			t.Error("expected ChannelBus for channel type")
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		_, err := New(domain.EventBusConfig{Type: "kafka"})
		if err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}

func TestChannelBusHighLoad(t *testing.T) {
	bus := NewChannelBus(1000)
	defer bus.Close()

	ctx := context.Background()
	tenantID := "tenant-load"

	var received atomic.Int32
	const messageCount = 100

	bus.Subscribe(ctx, tenantID, "load.topic", func(ctx context.Context, msg *domain.Message) error {
		received.Add(1)
		return nil
	})

	for i := 0; i < messageCount; i++ {
		bus.Publish(ctx, tenantID, "load.topic", []byte("msg"))
	}

	waitFor(t, func() bool { return received.Load() == messageCount })
}
