package workflow

import (
	"fmt"
	"sync"
)

// SignalKind identifies an external workflow signal.
type SignalKind string

const (
	SignalApprove SignalKind = "approve"
	SignalReject  SignalKind = "reject"
	SignalCancel  SignalKind = "cancel"
)

// ParseSignalKind validates a signal name from the wire.
func ParseSignalKind(s string) (SignalKind, error) {
	switch k := SignalKind(s); k {
	case SignalApprove, SignalReject, SignalCancel:
		return k, nil
	default:
		return "", fmt.Errorf("unknown signal kind %q", s)
	}
}

// Signal is one external decision delivered to a running instance.
type Signal struct {
	Kind   SignalKind
	Reason string
}

// Hub routes signals to running workflow instances by email ID. A runner
// registers its instance before its first suspend point and unregisters on
// exit; signals for instances that are not running are dropped (the caller
// sees delivered=false and can decide what to log).
type Hub struct {
	mu    sync.Mutex
	chans map[string]chan Signal
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{chans: make(map[string]chan Signal)}
}

// Register creates the signal channel for an instance. Registering the
// same email twice replaces the previous channel.
func (h *Hub) Register(emailID string) <-chan Signal {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan Signal, 4)
	h.chans[emailID] = ch
	return ch
}

// Unregister removes the instance's channel.
func (h *Hub) Unregister(emailID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.chans, emailID)
}

// Deliver sends a signal to a running instance without blocking. Returns
// false when the instance is not running or its buffer is full.
func (h *Hub) Deliver(emailID string, sig Signal) bool {
	h.mu.Lock()
	ch, ok := h.chans[emailID]
	h.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- sig:
		return true
	default:
		return false
	}
}
