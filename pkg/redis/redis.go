package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fleet-alerts/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Client struct {
	client        *redis.Client
	config        config.RedisConfig
	logger        *zap.Logger
	mu            sync.RWMutex
	isConnected   bool
	reconnectChan chan struct{}
	ctx           context.Context
	cancel        context.CancelFunc
}

type HealthStatus struct {
	IsConnected    bool          `json:"isConnected"`
	LastPing       time.Time     `json:"lastPing"`
	ResponseTime   time.Duration `json:"responseTime"`
	ConnectionInfo string        `json:"connectionInfo"`
	Error          string        `json:"error,omitempty"`
}

// NewClient creates a pooled Redis client and starts the health and reconnect loops.
func NewClient(cfg config.RedisConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	client := &Client{
		config:        cfg,
		logger:        logger.Named("redis"),
		reconnectChan: make(chan struct{}, 1),
		ctx:           ctx,
		cancel:        cancel,
	}

	client.connect()
	go client.healthCheckLoop()
	go client.reconnectLoop()

	return client
}

func (c *Client) options() *redis.Options {
	if c.config.URL != "" {
		opt, err := redis.ParseURL(c.config.URL)
		if err == nil {
			c.applyPoolSettings(opt)
			return opt
		}
		c.logger.Warn("failed to parse redis url, falling back to host:port", zap.Error(err))
	}

	opt := &redis.Options{
		Addr:     c.address(),
		Password: c.config.Password,
		DB:       c.config.DB,
	}
	c.applyPoolSettings(opt)
	return opt
}

func (c *Client) applyPoolSettings(opt *redis.Options) {
	if c.config.PoolSize > 0 {
		opt.PoolSize = c.config.PoolSize
	}
	if c.config.MinIdleConns > 0 {
		opt.MinIdleConns = c.config.MinIdleConns
	}
	if c.config.MaxRetries > 0 {
		opt.MaxRetries = c.config.MaxRetries
	}
	if c.config.RetryDelay > 0 {
		opt.MinRetryBackoff = c.config.RetryDelay
	}
	if c.config.DialTimeout > 0 {
		opt.DialTimeout = c.config.DialTimeout
	}
	if c.config.ReadTimeout > 0 {
		opt.ReadTimeout = c.config.ReadTimeout
	}
	if c.config.WriteTimeout > 0 {
		opt.WriteTimeout = c.config.WriteTimeout
	}
	if c.config.PoolTimeout > 0 {
		opt.PoolTimeout = c.config.PoolTimeout
	}
	if c.config.IdleTimeout > 0 {
		opt.ConnMaxIdleTime = c.config.IdleTimeout
	}
}

func (c *Client) address() string {
	if c.config.URL != "" && c.config.Host == "" {
		return c.config.URL
	}
	return fmt.Sprintf("%s:%s", c.config.Host, c.config.Port)
}

func (c *Client) connect() {
	client := redis.NewClient(c.options())

	c.mu.Lock()
	c.client = client
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := client.Ping(ctx).Err()
	c.mu.Lock()
	c.isConnected = err == nil
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("redis connection test failed", zap.Error(err))
		return
	}
	c.logger.Info("redis connected", zap.String("addr", c.address()))
}

// GetClient returns the underlying client. The pointer changes after a reconnect.
func (c *Client) GetClient() *redis.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

// HealthCheck pings Redis and schedules a reconnect when the ping fails.
func (c *Client) HealthCheck(ctx context.Context) HealthStatus {
	client := c.GetClient()

	status := HealthStatus{
		IsConnected:    c.IsConnected(),
		ConnectionInfo: c.address(),
	}

	if client == nil {
		status.Error = "redis client not initialized"
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	err := client.Ping(ctx).Err()
	status.ResponseTime = time.Since(start)
	status.LastPing = time.Now()

	c.mu.Lock()
	c.isConnected = err == nil
	c.mu.Unlock()

	if err != nil {
		status.IsConnected = false
		status.Error = err.Error()
		c.triggerReconnect()
		return status
	}

	status.IsConnected = true
	return status
}

func (c *Client) triggerReconnect() {
	select {
	case c.reconnectChan <- struct{}{}:
	default:
	}
}

func (c *Client) healthCheckLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			status := c.HealthCheck(c.ctx)
			if !status.IsConnected {
				c.logger.Warn("redis health check failed", zap.String("error", status.Error))
			}
		}
	}
}

// reconnectLoop rebuilds the client with exponential backoff until a ping succeeds.
func (c *Client) reconnectLoop() {
	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.reconnectChan:
			if c.IsConnected() {
				continue
			}

			c.logger.Info("attempting to reconnect to redis")

			c.mu.Lock()
			if c.client != nil {
				_ = c.client.Close()
			}
			c.mu.Unlock()

			c.connect()

			if c.IsConnected() {
				c.logger.Info("reconnected to redis")
				backoff = time.Second
				continue
			}

			c.logger.Warn("redis reconnection failed", zap.Duration("retry_in", backoff))
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(backoff):
			}

			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			c.triggerReconnect()
		}
	}
}

func (c *Client) Close() error {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// GetConnectionStats returns connection pool statistics.
func (c *Client) GetConnectionStats() map[string]interface{} {
	client := c.GetClient()
	if client == nil {
		return map[string]interface{}{
			"error": "redis client not initialized",
		}
	}

	stats := client.PoolStats()
	return map[string]interface{}{
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"totalConns":  stats.TotalConns,
		"idleConns":   stats.IdleConns,
		"staleConns":  stats.StaleConns,
		"isConnected": c.IsConnected(),
	}
}
