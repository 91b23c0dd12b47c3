package adapter

import (
	"errors"
	"sync"
	"testing"

	"mercator-hq/warden/pkg/devpath"
	"mercator-hq/warden/pkg/events"
	"mercator-hq/warden/pkg/kernel"
	"mercator-hq/warden/pkg/kernel/port"
	"mercator-hq/warden/pkg/kernel/wire"
	"mercator-hq/warden/pkg/policy"
)

type fakeConn struct {
	mu     sync.Mutex
	sent   []wire.Message
	status uint32
	err    error
	closed bool
}

func (f *fakeConn) Send(msg []byte) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	m, err := wire.Decode(msg)
	if err != nil {
		return 0, err
	}
	f.sent = append(f.sent, m)
	return f.status, nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func blockWriteRule() kernel.Rule {
	return kernel.Rule{
		PolicyID:  9,
		Path:      `\Device\HarddiskVolume3\docs\a.txt`,
		Mode:      kernel.MatchExact,
		Blocked:   kernel.OpSet{Write: true},
		Action:    policy.ActionBlock,
		CreatedBy: "admin",
	}
}

func TestAdapter_Send(t *testing.T) {
	conn := &fakeConn{}
	a := New(conn, WithFirstID(100))

	id, err := a.Send(blockWriteRule())
	if err != nil {
		t.Fatalf("Send() failed: %v", err)
	}
	if id != 100 {
		t.Errorf("expected driver id 100, got %d", id)
	}
	id2, _ := a.Send(blockWriteRule())
	if id2 != 101 {
		t.Errorf("expected driver id 101, got %d", id2)
	}

	if len(conn.sent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(conn.sent))
	}
	m := conn.sent[0]
	if m.BlockWrite != 1 || m.BlockAll != 0 || m.PathString() != `\Device\HarddiskVolume3\docs\a.txt` {
		t.Errorf("unexpected message %+v", m)
	}
	if s := a.Stats(); s.Sent != 2 || s.SendFailures != 0 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestAdapter_SendNonZeroStatus(t *testing.T) {
	conn := &fakeConn{status: 0xC0000022}
	a := New(conn)

	_, err := a.Send(blockWriteRule())
	var pe *policy.Error
	if !errors.As(err, &pe) || pe.Kind != policy.KindKernelTransport {
		t.Fatalf("expected transport error, got %v", err)
	}
	if pe.Status != 0xC0000022 {
		t.Errorf("expected raw status carried, got 0x%08X", pe.Status)
	}
	if a.NextID() != 1 {
		t.Error("failed send must not consume a driver id")
	}
	if s := a.Stats(); s.SendFailures != 1 || s.LastStatus != 0xC0000022 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestAdapter_SendUntransmittable(t *testing.T) {
	conn := &fakeConn{}
	a := New(conn)
	r := blockWriteRule()
	r.Blocked = kernel.OpSet{}
	r.Audited = kernel.OpSet{Write: true}

	if _, err := a.Send(r); !policy.IsKind(err, policy.KindInvalidIntent) {
		t.Errorf("expected invalid intent, got %v", err)
	}
	if len(conn.sent) != 0 {
		t.Error("nothing should reach the port")
	}
}

func TestAdapter_Remove(t *testing.T) {
	conn := &fakeConn{}
	a := New(conn)

	if err := a.Remove(3, devpath.DevicePath(`\Device\HarddiskVolume3\docs\`)); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	m := conn.sent[0]
	if !m.IsTombstone() || m.IsFolder != 1 {
		t.Errorf("expected folder tombstone, got %+v", m)
	}

	conn.err = errors.New("pipe broken")
	if err := a.Remove(3, `\Device\HarddiskVolume3\x`); !policy.IsKind(err, policy.KindKernelTransport) {
		t.Errorf("expected transport error, got %v", err)
	}
	if s := a.Stats(); s.Removed != 1 || s.RemoveFailures != 1 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestAdapter_Close(t *testing.T) {
	conn := &fakeConn{}
	a := New(conn)
	if err := a.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if !conn.closed {
		t.Error("connection not closed")
	}
	if _, err := a.Send(blockWriteRule()); !errors.Is(err, port.ErrClosed) {
		t.Errorf("expected ErrClosed after close, got %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
}

func TestConnect(t *testing.T) {
	_, err := Connect(port.DialerFunc(func(string) (port.Conn, error) {
		return nil, port.ErrUnavailable
	}), port.DefaultName)
	if !policy.IsKind(err, policy.KindKernelUnavailable) || !errors.Is(err, port.ErrUnavailable) {
		t.Errorf("expected kernel unavailable, got %v", err)
	}

	a, err := Connect(port.DialerFunc(func(string) (port.Conn, error) {
		return &fakeConn{}, nil
	}), port.DefaultName)
	if err != nil || a == nil {
		t.Fatalf("Connect() = %v, %v", a, err)
	}
}

func TestSlot(t *testing.T) {
	s := NewSlot(nil)
	if s.Connected() {
		t.Fatal("empty slot reported connected")
	}

	var got []events.Event
	s.AttachEventSink(events.SinkFunc(func(e events.Event) { got = append(got, e) }))

	a := New(&fakeConn{})
	if prev := s.Swap(a); prev != nil {
		t.Error("expected no previous adapter")
	}
	if !s.Connected() || s.Load() != a {
		t.Fatal("adapter not installed")
	}

	if !a.Emit(events.Event{NodeID: 5, Decision: events.DecisionBlocked}) {
		t.Fatal("sink should carry over to swapped adapter")
	}
	if len(got) != 1 || got[0].Type != events.TypeFileAccess {
		t.Errorf("unexpected events %+v", got)
	}

	if prev := s.Swap(nil); prev != a {
		t.Error("Swap should return the previous adapter")
	}
	if New(&fakeConn{}).Emit(events.Event{}) {
		t.Error("Emit without sink should report false")
	}
}
