package scale

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kuncy7/toolid/pkg/models"
)

func runListener(t *testing.T, l *Listener) (context.CancelFunc, <-chan struct{}) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	return cancel, done
}

func waitDone(t *testing.T, done <-chan struct{}, timeout time.Duration) {
	t.Helper()

	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatalf("Listener did not stop within %v", timeout)
	}
}

// sequenceOpener returns the given connections in order, then fails
func sequenceOpener(conns ...*MockConnection) *MockOpener {
	var mu sync.Mutex
	next := 0

	return &MockOpener{
		openFunc: func(cfg models.ScaleConfig) (Connection, error) {
			mu.Lock()
			defer mu.Unlock()
			if next >= len(conns) {
				return nil, &TransportError{Op: "open", Port: cfg.Port, Err: ErrPortBusy}
			}
			conn := conns[next]
			next++
			return conn, nil
		},
	}
}

func TestListener_SplitLineIsRecordedOnce(t *testing.T) {
	payload := []byte("Net 00123.5 g\r\n")

	for offset := 1; offset < len(payload); offset++ {
		conn := &MockConnection{
			chunks:    [][]byte{payload[:offset], payload[offset:]},
			readDelay: time.Millisecond,
		}
		sink := &MockSink{}
		start := time.Now()

		l := NewListener(testScaleConfig(7), sequenceOpener(conn), sink,
			WithBackoff(10*time.Millisecond), WithLogger(discardLogger()))
		cancel, done := runListener(t, l)

		if !waitFor(time.Second, func() bool { return conn.Reads() > 2 }) {
			t.Fatalf("Offset %d: listener did not consume the stream", offset)
		}
		cancel()
		waitDone(t, done, time.Second)

		readings := sink.Readings()
		if len(readings) != 1 {
			t.Fatalf("Offset %d: expected exactly 1 reading, got %d", offset, len(readings))
		}

		reading := readings[0]
		if reading.ScaleID != 7 {
			t.Errorf("Offset %d: expected scale id 7, got %d", offset, reading.ScaleID)
		}
		if reading.Weight != 123.5 {
			t.Errorf("Offset %d: expected weight 123.5, got %v", offset, reading.Weight)
		}
		if reading.CreatedAt.Before(start) {
			t.Errorf("Offset %d: reading created at %v before listener start %v", offset, reading.CreatedAt, start)
		}
	}
}

func TestListener_RetriesOpenWithBackoff(t *testing.T) {
	backoff := 20 * time.Millisecond
	opener := &MockOpener{}

	l := NewListener(testScaleConfig(1), opener, &MockSink{},
		WithBackoff(backoff), WithLogger(discardLogger()))
	cancel, done := runListener(t, l)

	time.Sleep(backoff*5 + backoff/2)

	select {
	case <-done:
		t.Fatal("Listener terminated on its own")
	default:
	}

	attempts := opener.Attempts()
	if len(attempts) < 3 || len(attempts) > 7 {
		t.Errorf("Expected about 6 open attempts, got %d", len(attempts))
	}

	for i := 1; i < len(attempts); i++ {
		gap := attempts[i].Sub(attempts[i-1])
		if gap < backoff-2*time.Millisecond {
			t.Errorf("Attempt %d came %v after the previous one, expected at least %v", i, gap, backoff)
		}
	}

	stopped := time.Now()
	cancel()
	waitDone(t, done, backoff*5)

	if elapsed := time.Since(stopped); elapsed > backoff+50*time.Millisecond {
		t.Errorf("Expected stop within one backoff interval, took %v", elapsed)
	}
}

func TestListener_StopDuringStreaming(t *testing.T) {
	conn := &MockConnection{readDelay: 5 * time.Millisecond}

	l := NewListener(testScaleConfig(1), sequenceOpener(conn), &MockSink{},
		WithLogger(discardLogger()))
	cancel, done := runListener(t, l)

	if !waitFor(time.Second, func() bool { return conn.Reads() > 0 }) {
		t.Fatal("Listener never started streaming")
	}

	cancel()
	waitDone(t, done, time.Second)

	if !conn.Closed() {
		t.Error("Expected connection to be closed on stop")
	}

	reads := conn.Reads()
	time.Sleep(20 * time.Millisecond)
	if conn.Reads() != reads {
		t.Errorf("Expected no reads after stop, got %d more", conn.Reads()-reads)
	}
}

func TestListener_ReconnectsAfterReadError(t *testing.T) {
	first := &MockConnection{
		chunks:  [][]byte{[]byte("Net 1 g\nNet 12")},
		readErr: &TransportError{Op: "read", Port: "/dev/ttyUSB0", Err: errors.New("device unplugged")},
	}
	second := &MockConnection{
		chunks:    [][]byte{[]byte("3 g\nNet 4 g\n")},
		readDelay: time.Millisecond,
	}
	sink := &MockSink{}
	opener := sequenceOpener(first, second)

	l := NewListener(testScaleConfig(3), opener, sink,
		WithBackoff(10*time.Millisecond), WithLogger(discardLogger()))
	runListener(t, l)

	if !waitFor(time.Second, func() bool { return len(sink.Readings()) == 2 }) {
		t.Fatalf("Expected 2 readings, got %d", len(sink.Readings()))
	}

	if !first.Closed() {
		t.Error("Expected failed connection to be closed")
	}

	readings := sink.Readings()
	if readings[0].Weight != 1 || readings[1].Weight != 4 {
		t.Errorf("Expected weights [1 4], got [%v %v]", readings[0].Weight, readings[1].Weight)
	}

	if n := len(opener.Attempts()); n != 2 {
		t.Errorf("Expected 2 open attempts, got %d", n)
	}
}

func TestListener_SinkFailureDoesNotStopListener(t *testing.T) {
	conn := &MockConnection{
		chunks:    [][]byte{[]byte("Net 1 g\n"), []byte("Gross 9 g\nNet 2 g\n")},
		readDelay: time.Millisecond,
	}
	sink := &MockSink{failNext: 1}

	l := NewListener(testScaleConfig(1), sequenceOpener(conn), sink,
		WithLogger(discardLogger()))
	_, done := runListener(t, l)

	if !waitFor(time.Second, func() bool { return len(sink.Readings()) == 1 }) {
		t.Fatalf("Expected 1 reading, got %d", len(sink.Readings()))
	}

	if got := sink.Readings()[0].Weight; got != 2 {
		t.Errorf("Expected surviving reading of 2g, got %v", got)
	}

	select {
	case <-done:
		t.Error("Listener stopped after a failed write")
	default:
	}

	if conn.Closed() {
		t.Error("Expected connection to stay open after a failed write")
	}
}

func TestListener_PreservesLineOrder(t *testing.T) {
	conn := &MockConnection{
		chunks:    [][]byte{[]byte("Net 1 g\nNet 2 g\nNet 3"), []byte(" g\nNet 4 g\n")},
		readDelay: time.Millisecond,
	}
	sink := &MockSink{}

	l := NewListener(testScaleConfig(1), sequenceOpener(conn), sink,
		WithLogger(discardLogger()))
	runListener(t, l)

	if !waitFor(time.Second, func() bool { return len(sink.Readings()) == 4 }) {
		t.Fatalf("Expected 4 readings, got %d", len(sink.Readings()))
	}

	for i, reading := range sink.Readings() {
		if reading.Weight != float64(i+1) {
			t.Errorf("Reading %d: expected %d, got %v", i, i+1, reading.Weight)
		}
	}
}

func TestListener_UnparseableLineIsDropped(t *testing.T) {
	overflow := "Net 1" + strings.Repeat("0", 400) + " g\n"
	conn := &MockConnection{
		chunks:    [][]byte{[]byte(overflow[:200]), []byte(overflow[200:]), []byte("Net 2 g\n")},
		readDelay: time.Millisecond,
	}
	sink := &MockSink{}

	l := NewListener(testScaleConfig(1), sequenceOpener(conn), sink,
		WithLogger(discardLogger()))
	_, done := runListener(t, l)

	if !waitFor(time.Second, func() bool { return len(sink.Readings()) == 1 }) {
		t.Fatalf("Expected 1 reading, got %d", len(sink.Readings()))
	}

	if got := sink.Readings()[0].Weight; got != 2 {
		t.Errorf("Expected only the 2g reading to be saved, got %v", got)
	}

	select {
	case <-done:
		t.Error("Listener stopped after an unparseable line")
	default:
	}

	if conn.Closed() {
		t.Error("Expected connection to stay open after an unparseable line")
	}
}
