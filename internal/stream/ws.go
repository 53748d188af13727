package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"metadataWatch/internal/model"
)

// Config configures the event feed client.
type Config struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the backoff between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout bounds the wait for the next message or pong.
	ReadTimeout time.Duration
	// Buffer is the event channel capacity.
	Buffer int
}

// DefaultConfig returns default feed client settings.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		Buffer:            256,
	}
}

// Client subscribes to the node event feed over a websocket and delivers
// contract events in arrival order. Resuming after a disconnect is the
// feed's concern; the client only reconnects and keeps reading.
type Client struct {
	url    string
	cfg    Config
	logger *zap.Logger
}

// NewClient builds a feed client for the websocket URL.
func NewClient(url string, cfg Config, logger *zap.Logger) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("ws url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultConfig().ReconnectDelay
	}
	if cfg.MaxReconnectDelay < cfg.ReconnectDelay {
		cfg.MaxReconnectDelay = DefaultConfig().MaxReconnectDelay
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultConfig().PingInterval
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultConfig().ReadTimeout
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultConfig().Buffer
	}
	return &Client{url: url, cfg: cfg, logger: logger}, nil
}

// Events starts the subscription and returns the event channel. The channel
// closes once the context is done.
func (c *Client) Events(ctx context.Context) <-chan model.ContractEvent {
	out := make(chan model.ContractEvent, c.cfg.Buffer)
	go c.run(ctx, out)
	return out
}

func (c *Client) run(ctx context.Context, out chan<- model.ContractEvent) {
	defer close(out)

	delay := c.cfg.ReconnectDelay
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			c.logger.Warn("feed dial failed", zap.Error(err), zap.Duration("retry_in", delay))
			if !sleep(ctx, delay) {
				return
			}
			delay = nextDelay(delay, c.cfg.MaxReconnectDelay)
			continue
		}

		c.logger.Info("feed connected", zap.String("url", c.url))
		delay = c.cfg.ReconnectDelay

		err = c.readLoop(ctx, conn, out)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("feed disconnected", zap.Error(err), zap.Duration("retry_in", delay))
		if !sleep(ctx, delay) {
			return
		}
		delay = nextDelay(delay, c.cfg.MaxReconnectDelay)
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- model.ContractEvent) error {
	conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	})

	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingDone:
				return
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				deadline := time.Now().Add(10 * time.Second)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))

		var env model.EventEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Debug("unparseable feed message", zap.Error(err))
			continue
		}
		if env.Type != "contract_event" || env.ContractEvent == nil {
			continue
		}

		select {
		case out <- *env.ContractEvent:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextDelay(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}
