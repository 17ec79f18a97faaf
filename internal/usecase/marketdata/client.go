package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	logger "github.com/christopherrons/herron-trading-engine/pkg/logger"
)

const (
	dialTimeout    = 10 * time.Second
	readTimeout    = 90 * time.Second
	reconnectDelay = 5 * time.Second
)

// Client consumes a Bitstamp style live trades websocket feed and keeps
// the latest price per symbol in a cache. The feed is best effort: a
// dropped connection is retried until the client is stopped, and feed
// failures never reach the matching path.
type Client struct {
	logger  *logger.Logger
	url     string
	symbols []string
	cache   *Cache

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type subscribeMessage struct {
	Event string        `json:"event"`
	Data  subscribeData `json:"data"`
}

type subscribeData struct {
	Channel string `json:"channel"`
}

type feedMessage struct {
	Event   string    `json:"event"`
	Channel string    `json:"channel"`
	Data    tradeData `json:"data"`
}

type tradeData struct {
	Price     json.Number `json:"price"`
	Amount    json.Number `json:"amount"`
	Timestamp string      `json:"timestamp"`
}

// NewClient creates a market data client for the given feed URL and symbols.
func NewClient(url string, symbols []string, cache *Cache, logger *logger.Logger) *Client {
	return &Client{
		logger:  logger,
		url:     url,
		symbols: symbols,
		cache:   cache,
	}
}

// Cache returns the read side of the reference price cache.
func (c *Client) Cache() *Cache {
	return c.cache
}

// Start begins consuming the feed in the background.
func (c *Client) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.run()
}

// Stop disconnects from the feed and waits for the consumer to exit.
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

func (c *Client) run() {
	defer c.wg.Done()

	for {
		if err := c.consume(); err != nil {
			c.logger.Warn("Market data feed disconnected", logger.Field{
				Key:   "url",
				Value: c.url,
			}, logger.Field{
				Key:   "error",
				Value: err.Error(),
			})
		}

		select {
		case <-c.ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *Client) consume() error {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(c.ctx, c.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-c.ctx.Done()
		conn.Close()
	}()

	for _, symbol := range c.symbols {
		sub := subscribeMessage{
			Event: "bts:subscribe",
			Data:  subscribeData{Channel: fmt.Sprintf("live_trades_%s", symbol)},
		}
		if err := conn.WriteJSON(sub); err != nil {
			return err
		}
	}

	c.logger.Info("Market data feed connected", logger.Field{
		Key:   "url",
		Value: c.url,
	}, logger.Field{
		Key:   "symbols",
		Value: c.symbols,
	})

	for {
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return err
		}

		var msg feedMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if c.ctx.Err() != nil {
				return nil
			}
			return err
		}

		if msg.Event != "trade" {
			continue
		}

		c.handleTrade(msg)
	}
}

func (c *Client) handleTrade(msg feedMessage) {
	symbol := symbolFromChannel(msg.Channel)
	if symbol == "" {
		return
	}

	price, err := decimal.NewFromString(msg.Data.Price.String())
	if err != nil {
		c.logger.Warn("Unparsable price on market data feed", logger.Field{
			Key:   "channel",
			Value: msg.Channel,
		}, logger.Field{
			Key:   "price",
			Value: msg.Data.Price.String(),
		})
		return
	}

	c.cache.set(ReferencePrice{
		Symbol:     symbol,
		Price:      price,
		ObservedAt: time.Now(),
	})
}

func symbolFromChannel(channel string) string {
	const prefix = "live_trades_"
	if len(channel) <= len(prefix) || channel[:len(prefix)] != prefix {
		return ""
	}
	return channel[len(prefix):]
}
