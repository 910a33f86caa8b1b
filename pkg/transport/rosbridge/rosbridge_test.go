package rosbridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gwillem/diablo/pkg/motion"
)

type received struct {
	Op        string          `json:"op"`
	Topic     string          `json:"topic"`
	Type      string          `json:"type"`
	QueueSize int             `json:"queue_size"`
	Msg       json.RawMessage `json:"msg"`
}

// bridgeServer is a minimal rosbridge stand-in that forwards every JSON
// operation it reads.
func bridgeServer(t *testing.T) (string, <-chan received) {
	t.Helper()
	ops := make(chan received, 64)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for {
			var op received
			if err := conn.ReadJSON(&op); err != nil {
				close(ops)
				return
			}
			ops <- op
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http"), ops
}

func next(t *testing.T, ops <-chan received) received {
	t.Helper()
	select {
	case op, ok := <-ops:
		if !ok {
			t.Fatal("server connection closed")
		}
		return op
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for operation")
	}
	panic("unreachable")
}

func TestClient_AdvertisePublishClose(t *testing.T) {
	url, ops := bridgeServer(t)
	ctx := context.Background()

	c, err := Dial(ctx, Config{URL: url})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	adv := next(t, ops)
	if adv.Op != "advertise" || adv.Topic != DefaultTopic || adv.Type != DefaultType || adv.QueueSize != 2 {
		t.Errorf("advertise = %+v", adv)
	}

	frame := motion.ControlFrame{
		ModeMark: true,
		Value:    motion.Values{Up: 1.0, Roll: -0.3},
		Mode:     motion.Mode{StandMode: true},
	}
	if err := c.Publish(ctx, frame); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	pub := next(t, ops)
	if pub.Op != "publish" || pub.Topic != DefaultTopic {
		t.Errorf("publish = %+v", pub)
	}
	var msg map[string]any
	if err := json.Unmarshal(pub.Msg, &msg); err != nil {
		t.Fatal(err)
	}
	if msg["mode_mark"] != true {
		t.Errorf("mode_mark = %v", msg["mode_mark"])
	}
	value, _ := msg["value"].(map[string]any)
	if value["up"] != 1.0 || value["roll"] != -0.3 {
		t.Errorf("value = %v", value)
	}
	mode, _ := msg["mode"].(map[string]any)
	if mode["stand_mode"] != true {
		t.Errorf("mode = %v", mode)
	}

	if err := c.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if op := next(t, ops); op.Op != "unadvertise" {
		t.Errorf("expected unadvertise, got %+v", op)
	}

	if err := c.Publish(ctx, frame); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish after Close = %v, want ErrClosed", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestClient_CustomTopic(t *testing.T) {
	url, ops := bridgeServer(t)
	c, err := Dial(context.Background(), Config{URL: url, Topic: "robot2/MotionCmd"})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if adv := next(t, ops); adv.Topic != "robot2/MotionCmd" {
		t.Errorf("topic = %q", adv.Topic)
	}
	if c.Topic() != "robot2/MotionCmd" {
		t.Errorf("Topic() = %q", c.Topic())
	}
}

func TestClient_CancelledContext(t *testing.T) {
	url, _ := bridgeServer(t)
	c, err := Dial(context.Background(), Config{URL: url})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Publish(ctx, motion.Neutral()); !errors.Is(err, context.Canceled) {
		t.Errorf("Publish = %v, want context.Canceled", err)
	}
}

func TestDial_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	if _, err := Dial(context.Background(), Config{URL: url}); err == nil {
		t.Fatal("expected dial error")
	}
}
