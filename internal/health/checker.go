// Package health keeps track of whether the backing services answer.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type Config struct {
	RedisCheckInterval time.Duration
	DBCheckInterval    time.Duration
	ID                 string
}

type Component string

const (
	ComponentRedis Component = "redis"
	ComponentDB    Component = "db"
)

type CheckResult struct {
	Timestamp time.Time `json:"timestamp"`
	Result    bool      `json:"result"`
}

type HealthChecks map[Component]CheckResult

type HealthStatus struct {
	Healthy bool         `json:"healthy"`
	Checks  HealthChecks `json:"checks"`
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Checker pings the database and, when configured, Redis.
type Checker struct {
	config *Config
	redis  *redis.Client
	db     Pinger
	log    *slog.Logger

	mu     sync.RWMutex
	checks HealthChecks
}

// NewChecker builds a checker. rdb may be nil when Redis is not used.
func NewChecker(rdb *redis.Client, db Pinger, config *Config) *Checker {
	c := &Checker{
		config: config,
		redis:  rdb,
		db:     db,
		log:    slog.With("pod", config.ID, "component", "health"),
		// if this code gets executed, we assume that there was an initial check
		checks: HealthChecks{
			ComponentDB: CheckResult{Timestamp: time.Now(), Result: true},
		},
	}
	if rdb != nil {
		c.checks[ComponentRedis] = CheckResult{Timestamp: time.Now(), Result: true}
	}
	return c
}

// Run checks every component on its interval until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	c.log.Debug("starting the health checker")

	dbTicker := time.NewTicker(c.config.DBCheckInterval)
	defer dbTicker.Stop()

	var redisC <-chan time.Time
	if c.redis != nil {
		redisTicker := time.NewTicker(c.config.RedisCheckInterval)
		defer redisTicker.Stop()
		redisC = redisTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			c.log.Debug("stopping the health checker")
			return
		case <-redisC:
			c.checkRedis(ctx)
		case <-dbTicker.C:
			c.checkDB(ctx)
		}
	}
}

// Check runs every check now and returns the resulting status.
func (c *Checker) Check(ctx context.Context) HealthStatus {
	c.checkDB(ctx)
	if c.redis != nil {
		c.checkRedis(ctx)
	}
	return c.GetHealthStatus()
}

func (c *Checker) checkRedis(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	_, err := c.redis.Ping(checkCtx).Result()
	c.record(ComponentRedis, err)
}

func (c *Checker) checkDB(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	err := c.db.PingContext(checkCtx)
	c.record(ComponentDB, err)
}

func (c *Checker) record(component Component, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[component] = CheckResult{Timestamp: time.Now(), Result: err == nil}
}

func (c *Checker) GetHealthStatus() HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	healthy := true
	checks := make(HealthChecks, len(c.checks))
	for component, check := range c.checks {
		checks[component] = check
		if !check.Result {
			healthy = false
			c.log.Error("component health check failed", "check", component)
		}
	}

	return HealthStatus{
		Healthy: healthy,
		Checks:  checks,
	}
}
