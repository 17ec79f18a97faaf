package marketdata

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ReferencePrice is the last observed trade price for a symbol on the
// external feed. Reference prices are informational only and never
// influence matching.
type ReferencePrice struct {
	Symbol     string
	Price      decimal.Decimal
	ObservedAt time.Time
}

// Cache holds the latest reference price per symbol. Writes come from a
// single feed goroutine, reads can come from anywhere.
type Cache struct {
	mu     sync.RWMutex
	prices map[string]ReferencePrice
}

// NewCache creates an empty reference price cache.
func NewCache() *Cache {
	return &Cache{
		prices: make(map[string]ReferencePrice),
	}
}

func (c *Cache) set(price ReferencePrice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[price.Symbol] = price
}

// Price returns the latest reference price for a symbol.
func (c *Cache) Price(symbol string) (ReferencePrice, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	price, ok := c.prices[symbol]
	return price, ok
}

// Symbols returns every symbol with a cached reference price.
func (c *Cache) Symbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	symbols := make([]string, 0, len(c.prices))
	for symbol := range c.prices {
		symbols = append(symbols, symbol)
	}
	return symbols
}
