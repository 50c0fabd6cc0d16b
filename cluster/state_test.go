package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/luminave/pulsekit/domain"
)

func startReceiver(t *testing.T) *StateReceiver {
	t.Helper()
	r := NewStateReceiver("127.0.0.1:0")
	if err := r.Init(context.Background(), nil); err != nil {
		t.Fatalf("receiver init: %v", err)
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("receiver start: %v", err)
	}
	<-r.Started()
	if err := r.StartedErr(); err != nil {
		t.Fatalf("receiver bind: %v", err)
	}
	t.Cleanup(func() { _ = r.Stop() })
	return r
}

func TestStateReplication(t *testing.T) {
	r := startReceiver(t)

	var received []StateMessage
	done := make(chan struct{})
	r.OnState(func(msg StateMessage) {
		received = append(received, msg)
		if len(received) == 1 {
			close(done)
		}
	})

	s := NewStateSender("ws://"+r.Addr()+"/state", 5*time.Millisecond)
	s.SetIdentity("sim1", RoleSimulator)
	s.SetSource(func() map[string]any {
		return map[string]any{"simulation/time_scale": 1.5}
	})
	if err := s.Init(context.Background(), nil); err != nil {
		t.Fatalf("sender init: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("sender start: %v", err)
	}
	defer s.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("no state received")
	}

	msg, ok := r.Latest()
	if !ok {
		t.Fatal("no latest snapshot")
	}
	if msg.Hostname != "sim1" || msg.Role != string(RoleSimulator) {
		t.Fatalf("identity = %s/%s", msg.Hostname, msg.Role)
	}
	if msg.NodeID == "" || msg.Seq == 0 {
		t.Fatalf("message not stamped: %+v", msg)
	}
	if v, ok := msg.Values["simulation/time_scale"]; !ok || v != 1.5 {
		t.Fatalf("values = %v", msg.Values)
	}
}

func TestStopClosesOpenConnections(t *testing.T) {
	r := startReceiver(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+r.Addr()+"/state", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(StateMessage{Hostname: "sim1", Seq: 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	deadline := time.After(5 * time.Second)
	for {
		if _, ok := r.Latest(); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("message never received")
		case <-time.After(time.Millisecond):
		}
	}

	// Stop must not wait for the peer to hang up.
	stopDone := make(chan error, 1)
	go func() { stopDone <- r.Stop() }()
	select {
	case err := <-stopDone:
		if err != nil {
			t.Fatalf("stop: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stop blocked on an open connection")
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("connection still alive after receiver stop")
	}
}

func TestSenderSurvivesMissingReceiver(t *testing.T) {
	s := NewStateSender("ws://127.0.0.1:1/state", time.Millisecond)
	if err := s.Init(context.Background(), nil); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-s.Started()

	// Dial failures must not kill the worker.
	time.Sleep(20 * time.Millisecond)
	if err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := s.Err(); err != nil {
		t.Fatalf("worker exited with %v", err)
	}
}

func TestSenderRequiresTarget(t *testing.T) {
	s := NewStateSender("", time.Second)
	if err := s.Init(context.Background(), nil); err == nil {
		t.Fatal("expected error for missing target")
	}
	if s.Initialized() {
		t.Fatal("sender must stay uninitialized after failed init")
	}
}

func TestCapabilities(t *testing.T) {
	r := NewStateReceiver("127.0.0.1:0")
	if err := r.Init(context.Background(), nil); err != nil {
		t.Fatalf("receiver init: %v", err)
	}
	if !r.Capabilities().Has(domain.CapStateReceive) {
		t.Fatalf("receiver capabilities = %v", r.Capabilities())
	}

	s := NewStateSender("ws://localhost/state", time.Second)
	if err := s.Init(context.Background(), nil); err != nil {
		t.Fatalf("sender init: %v", err)
	}
	if !s.Capabilities().Has(domain.CapStateSend) {
		t.Fatalf("sender capabilities = %v", s.Capabilities())
	}
	if s.NodeID() == "" {
		t.Fatal("node id not assigned")
	}
}
