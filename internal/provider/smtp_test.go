package provider

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestSMTPRelaySendHonorsContextDeadline(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	// Accept the connection but never speak SMTP, like a dead relay.
	hold := make(chan struct{})
	defer close(hold)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		<-hold
		conn.Close()
	}()

	relay := NewSMTPRelay(Config{Endpoint: ln.Addr().String()})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = relay.Send(ctx, testMessage())
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected an error from a relay that never responds")
	}
	if IsPermanent(err) {
		t.Errorf("dead relay must classify as transient, got %v", err)
	}
	if elapsed > 2*time.Second {
		t.Errorf("Send returned after %v, connection deadline not honored", elapsed)
	}
}

func TestSMTPRelayDialRespectsCancelledContext(t *testing.T) {
	relay := NewSMTPRelay(Config{Endpoint: "127.0.0.1:1"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := relay.Send(ctx, testMessage()); err == nil {
		t.Fatal("expected dial under a cancelled context to fail")
	}
}
