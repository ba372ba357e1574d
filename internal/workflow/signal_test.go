package workflow

import "testing"

func TestParseSignalKind(t *testing.T) {
	tests := []struct {
		input   string
		want    SignalKind
		wantErr bool
	}{
		{"approve", SignalApprove, false},
		{"reject", SignalReject, false},
		{"cancel", SignalCancel, false},
		{"", "", true},
		{"APPROVE", "", true},
		{"retry", "", true},
	}

	for _, tt := range tests {
		got, err := ParseSignalKind(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseSignalKind(%q): expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSignalKind(%q): unexpected error %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSignalKind(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestHub_DeliverToRegistered(t *testing.T) {
	hub := NewHub()
	ch := hub.Register("em-1")

	if !hub.Deliver("em-1", Signal{Kind: SignalApprove}) {
		t.Fatal("expected delivery to registered instance")
	}
	sig := <-ch
	if sig.Kind != SignalApprove {
		t.Errorf("expected approve, got %s", sig.Kind)
	}
}

func TestHub_DeliverToUnknownIsDropped(t *testing.T) {
	hub := NewHub()
	if hub.Deliver("nobody", Signal{Kind: SignalCancel}) {
		t.Error("expected delivery to unknown instance to report false")
	}
}

func TestHub_UnregisterStopsDelivery(t *testing.T) {
	hub := NewHub()
	hub.Register("em-2")
	hub.Unregister("em-2")

	if hub.Deliver("em-2", Signal{Kind: SignalCancel}) {
		t.Error("expected delivery after unregister to report false")
	}
}

func TestHub_FullBufferDoesNotBlock(t *testing.T) {
	hub := NewHub()
	hub.Register("em-3")

	delivered := 0
	for i := 0; i < 10; i++ {
		if hub.Deliver("em-3", Signal{Kind: SignalApprove}) {
			delivered++
		}
	}
	if delivered != 4 {
		t.Errorf("expected buffer of 4 deliveries, got %d", delivered)
	}
}
