// Package rosbridge publishes control frames to a ROS 2 topic through a
// rosbridge websocket server.
package rosbridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gwillem/diablo/pkg/motion"
)

// Defaults for the Diablo motion command topic.
const (
	DefaultURL   = "ws://localhost:9090"
	DefaultTopic = "diablo/MotionCmd"
	DefaultType  = "motion_msgs/msg/MotionCtrl"
)

const writeTimeout = time.Second

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("rosbridge: connection closed")

// Config holds connection settings.
type Config struct {
	URL   string
	Topic string
	Type  string
	// QueueSize is the publisher queue length advertised to rosbridge.
	// The motion command topic uses 2.
	QueueSize int
}

// operation is a rosbridge protocol message. Only the fields used by
// advertise, publish and unadvertise are modeled.
type operation struct {
	Op        string               `json:"op"`
	ID        string               `json:"id,omitempty"`
	Topic     string               `json:"topic"`
	Type      string               `json:"type,omitempty"`
	QueueSize int                  `json:"queue_size,omitempty"`
	Msg       *motion.ControlFrame `json:"msg,omitempty"`
}

// Client is a connected rosbridge publisher. It is safe for concurrent use.
type Client struct {
	cfg Config

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// Dial connects to the rosbridge server and advertises the topic.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.Type == "" {
		cfg.Type = DefaultType
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 2
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}

	c := &Client{cfg: cfg, conn: conn}
	if err := c.write(ctx, operation{
		Op:        "advertise",
		ID:        "advertise:" + cfg.Topic,
		Topic:     cfg.Topic,
		Type:      cfg.Type,
		QueueSize: cfg.QueueSize,
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("advertise %s: %w", cfg.Topic, err)
	}
	return c, nil
}

// Topic returns the advertised topic.
func (c *Client) Topic() string {
	return c.cfg.Topic
}

// Publish sends one MotionCtrl message.
func (c *Client) Publish(ctx context.Context, frame motion.ControlFrame) error {
	if err := c.write(ctx, operation{Op: "publish", Topic: c.cfg.Topic, Msg: &frame}); err != nil {
		return fmt.Errorf("publish %s: %w", c.cfg.Topic, err)
	}
	return nil
}

func (c *Client) write(ctx context.Context, op operation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteJSON(op)
}

// Close unadvertises the topic and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	deadline := time.Now().Add(writeTimeout)
	c.conn.SetWriteDeadline(deadline)
	var errs []error
	if err := c.conn.WriteJSON(operation{Op: "unadvertise", Topic: c.cfg.Topic}); err != nil {
		errs = append(errs, err)
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		errs = append(errs, err)
	}
	if err := c.conn.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
