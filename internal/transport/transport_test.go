// SPDX-License-Identifier: MIT
package transport

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestNewFrame(t *testing.T) {
	f, err := NewFrame("main", 16.5, 2, 0.8, []float64{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatal(err)
	}
	if f.Type != TypeFrame || f.Length != 3 {
		t.Errorf("frame = %+v", f)
	}
	if c := f.Channel(1); c[0] != 4 || len(c) != 3 {
		t.Errorf("Channel(1) = %v", c)
	}
	if got := f.Float32s(nil); len(got) != 6 || got[5] != 6 {
		t.Errorf("Float32s = %v", got)
	}
	if _, err := NewFrame("main", 0, 4, 0, []float64{1, 2, 3}); err == nil {
		t.Error("expected error for values not divisible by channels")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	wst := NewWebSocketTransport("127.0.0.1:0", "/spectrum")
	srv := httptest.NewServer(wst.Handler())
	defer srv.Close()
	defer wst.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/spectrum"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitFor(t, func() bool { return wst.ClientCount() == 1 })

	f, _ := NewFrame("main", 33.3, 2, 0.5, []float64{0.1, 0.2, 0.3, 0.4})
	if err := wst.Send(f); err != nil {
		t.Fatal(err)
	}
	if err := wst.Send(NewKick("main", 33.3, 0.9)); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Frame
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if got.Type != TypeFrame || got.Consumer != "main" || got.Channels != 2 || got.Length != 2 || got.Values[3] != 0.4 {
		t.Errorf("frame = %+v", got)
	}

	var kick Kick
	if err := conn.ReadJSON(&kick); err != nil {
		t.Fatalf("read kick: %v", err)
	}
	if kick.Type != TypeKick || kick.Energy != 0.9 {
		t.Errorf("kick = %+v", kick)
	}

	conn.Close()
	waitFor(t, func() bool { return wst.ClientCount() == 0 })
}

func TestWebSocketStartAndClose(t *testing.T) {
	wst := NewWebSocketTransport("127.0.0.1:0", "/spectrum")
	if err := wst.Start(); err != nil {
		t.Skipf("cannot listen on loopback: %v", err)
	}
	if wst.Port() == 0 {
		t.Error("Port should be known after Start")
	}
	if err := wst.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := wst.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := wst.Send("late"); err != ErrClosed {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
}

func TestLoggingTransport(t *testing.T) {
	lt := NewLoggingTransport(time.Second)
	f, _ := NewFrame("main", 0, 1, 0, []float64{0})
	for _, msg := range []any{f, NewKick("main", 0, 1), "other"} {
		if err := lt.Send(msg); err != nil {
			t.Errorf("Send(%T) = %v", msg, err)
		}
	}
	if err := lt.Close(); err != nil {
		t.Error(err)
	}
}

func TestAdvertiserValidation(t *testing.T) {
	if _, err := NewAdvertiser("spectra", "_spectra._tcp", 0, "/"); err == nil {
		t.Error("expected error for port 0")
	}
	a, err := NewAdvertiser("spectra", "_spectra._tcp", 8080, "/spectrum")
	if err != nil {
		t.Fatal(err)
	}
	if txt := a.TXT(); txt[0] != "path=/spectrum" {
		t.Errorf("TXT = %v", txt)
	}
	if err := a.Close(); err != nil {
		t.Errorf("Close before Start: %v", err)
	}
}
