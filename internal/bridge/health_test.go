package bridge

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nerrad567/miplug-bridge/internal/infrastructure/mqtt"
)

func lastHealth(t *testing.T, client *MockMQTTClient) HealthMessage {
	t.Helper()
	msgs := client.publishedOn(mqtt.Topics{}.Health(Kind))
	if len(msgs) == 0 {
		t.Fatal("no health messages published")
	}
	last := msgs[len(msgs)-1]
	if !last.Retained {
		t.Error("health message not retained")
	}
	var msg HealthMessage
	if err := json.Unmarshal(last.Payload, &msg); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	return msg
}

func TestHealthReporter_Status(t *testing.T) {
	tests := []struct {
		name      string
		valid     bool
		connected bool
		want      HealthStatus
	}{
		{"healthy", true, true, HealthHealthy},
		{"mqtt down", true, false, HealthDegraded},
		{"invalid configuration", false, true, HealthUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewMockMQTTClient()
			client.setConnected(tt.connected)
			h := NewHealthReporter(HealthReporterConfig{
				AccessoryID: testAccessoryID,
				Version:     "1.2.3",
				Publisher:   client,
				Validity:    func() bool { return tt.valid },
			})

			if err := h.PublishNow(); err != nil {
				t.Fatalf("PublishNow() error = %v", err)
			}
			msg := lastHealth(t, client)
			if msg.Status != tt.want {
				t.Errorf("Status = %s, want %s", msg.Status, tt.want)
			}
			if msg.Version != "1.2.3" || msg.AccessoryID != testAccessoryID || msg.Bridge != Kind {
				t.Errorf("msg = %+v", msg)
			}
		})
	}
}

func TestHealthReporter_StartStop(t *testing.T) {
	client := NewMockMQTTClient()
	h := NewHealthReporter(HealthReporterConfig{
		AccessoryID: testAccessoryID,
		Interval:    10 * time.Millisecond,
		Publisher:   client,
	})

	h.Start(context.Background())

	deadline := time.After(2 * time.Second)
	for len(client.publishedOn(mqtt.Topics{}.Health(Kind))) < 2 {
		select {
		case <-deadline:
			t.Fatal("periodic health not published")
		case <-time.After(5 * time.Millisecond):
		}
	}

	h.Stop()
	h.Stop()

	if msg := lastHealth(t, client); msg.Status != HealthStopping {
		t.Errorf("final Status = %s, want %s", msg.Status, HealthStopping)
	}
}

func TestHealthReporter_Defaults(t *testing.T) {
	h := NewHealthReporter(HealthReporterConfig{})
	if h.interval != defaultHealthInterval {
		t.Errorf("interval = %v, want %v", h.interval, defaultHealthInterval)
	}
	if !h.validity() {
		t.Error("default validity = false, want true")
	}
	if err := h.PublishNow(); err != nil {
		t.Errorf("PublishNow() without publisher error = %v", err)
	}
}
