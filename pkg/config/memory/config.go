package memory

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/spacenexus/spacetoken-server/pkg/config"
)

// ErrInduced is returned by Get while InduceErrors is in effect.
var ErrInduced = errors.New("memory config: induced error")

// Config holds a value in memory so tests can flip it at runtime.
type Config struct {
	mu       sync.RWMutex
	value    interface{}
	failing  bool
	shutdown bool
}

// NewConfig returns a Config holding value. A nil value reads as unset.
func NewConfig(value interface{}) *Config {
	return &Config{value: value}
}

func (c *Config) Get(_ context.Context) (interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch {
	case c.shutdown:
		return nil, config.ErrShutdown
	case c.failing:
		return nil, ErrInduced
	case c.value == nil:
		return nil, config.ErrNoValue
	}
	return c.value, nil
}

func (c *Config) Shutdown() {
	c.update(func() { c.shutdown = true })
}

func (c *Config) SetValue(value interface{}) {
	c.update(func() { c.value = value })
}

// ClearValue makes subsequent reads return config.ErrNoValue.
func (c *Config) ClearValue() {
	c.SetValue(nil)
}

func (c *Config) InduceErrors() {
	c.update(func() { c.failing = true })
}

func (c *Config) StopInducingErrors() {
	c.update(func() { c.failing = false })
}

func (c *Config) update(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}
