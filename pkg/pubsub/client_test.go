package pubsub

import (
	"context"
	"testing"

	"github.com/schoolride/billing-backend/pkg/config"
)

func TestResourceNames(t *testing.T) {
	if got := topicResourceName("proj", "sr-billing-events"); got != "projects/proj/topics/sr-billing-events" {
		t.Fatalf("unexpected topic name %q", got)
	}
	if got := topicResourceName("proj", "projects/other/topics/t"); got != "projects/other/topics/t" {
		t.Fatalf("full topic names should pass through, got %q", got)
	}
	if got := subscriptionResourceName("proj", "billing-notify"); got != "projects/proj/subscriptions/billing-notify" {
		t.Fatalf("unexpected subscription name %q", got)
	}
	if got := topicResourceName("", "t"); got != "" {
		t.Fatalf("expected empty name without project, got %q", got)
	}
	if got := subscriptionResourceName("proj", "  "); got != "" {
		t.Fatalf("expected empty name for blank subscription, got %q", got)
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()
	if _, err := NewClient(ctx, config.GCPConfig{}, config.PubSubConfig{BillingTopic: "t"}, nil); err != errProjectIDRequired {
		t.Fatalf("expected project id error, got %v", err)
	}
	if _, err := NewClient(ctx, config.GCPConfig{ProjectID: "proj"}, config.PubSubConfig{}, nil); err != errTopicRequired {
		t.Fatalf("expected topic error, got %v", err)
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if c.Publisher("t") != nil {
		t.Fatal("nil client should not return a publisher")
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("nil client ping should fail")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("nil close should be a no-op, got %v", err)
	}
}
