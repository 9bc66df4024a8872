package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"PulseCast/internal/domain/models"
	drepo "PulseCast/internal/domain/repository"
	pkghttp "PulseCast/pkg/http"

	"github.com/gorilla/websocket"
)

// Client implements a BiometricStream backed by the device gateway
// WebSocket, with a REST endpoint for historical backfill.
type Client struct {
	token          string
	websocketURL   string
	restURL        string
	streams        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	rest      *pkghttp.Client
	conn      *websocket.Conn
	connected bool
}

// New creates a new device gateway BiometricStream.
func New(token, websocketURL, restURL string, streams []string, reconnectDelay, pingInterval time.Duration) drepo.BiometricStream {
	return &Client{
		token:          token,
		websocketURL:   websocketURL,
		restURL:        restURL,
		streams:        streams,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		rest:           pkghttp.NewClient(),
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, c.token)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("gateway connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	log.Printf("gateway: connected")
	return nil
}

// Subscribe subscribes to the configured biometric streams.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("gateway not connected")
	}
	for _, s := range c.streams {
		msg := map[string]string{"type": "subscribe", "stream": s}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
		log.Printf("gateway: subscribed %s", s)
	}
	return nil
}

type gwMessage struct {
	Type string                `json:"type"`
	Data []models.DailySummary `json:"data"`
}

// Read streams daily summaries and errors.
func (c *Client) Read(ctx context.Context) (<-chan *models.DailySummary, <-chan error) {
	summaries := make(chan *models.DailySummary, 256)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(summaries)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("gateway conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("gateway read: %w", err)
					return
				}
				var m gwMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-summary frames
					continue
				}
				if m.Type != "daily_summary" {
					continue
				}
				for i := range m.Data {
					s := m.Data[i]
					select {
					case summaries <- &s:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return summaries, errs
}

// Backfill fetches the most recent days of summaries over REST. Used at
// startup to close gaps accumulated while the stream was down.
func (c *Client) Backfill(ctx context.Context, days int) ([]*models.DailySummary, error) {
	if c.restURL == "" {
		return nil, fmt.Errorf("gateway rest url not configured")
	}
	var got []models.DailySummary
	err := c.rest.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    fmt.Sprintf("%s/v1/summaries", c.restURL),
		Headers: map[string]string{
			"Authorization": "Bearer " + c.token,
		},
		QueryParams: map[string][]string{
			"days": {fmt.Sprintf("%d", days)},
		},
	}, &got)
	if err != nil {
		return nil, fmt.Errorf("gateway backfill: %w", err)
	}
	out := make([]*models.DailySummary, len(got))
	for i := range got {
		out[i] = &got[i]
	}
	return out, nil
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
