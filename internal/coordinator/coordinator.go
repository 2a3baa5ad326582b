package coordinator

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Pinger is the storage reachability probe. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Heartbeats announces live instances. Nil-able: heartbeat publication is
// optional observability.
type Heartbeats interface {
	Beat(ctx context.Context, instanceID string, startedAt time.Time) error
	Forget(ctx context.Context, instanceID string) error
	LiveInstances(ctx context.Context) ([]string, error)
}

const (
	heartbeatInterval = 5 * time.Second
	probeTimeout      = 2 * time.Second
)

// Coordinator arbitrates traffic between the two process instances that are
// briefly live against the same storage during a blue-green rollover. It
// implements no consensus: data correctness rests entirely on the storage
// layer's uniqueness constraint, and this component only gates traffic via
// the readiness signal and reports storage reachability for the health probe.
// Correctness must hold even when both instances accept writes at once.
type Coordinator struct {
	instanceID string
	startedAt  time.Time
	storage    Pinger
	heartbeats Heartbeats
	logger     *zap.Logger
	draining   atomic.Bool
}

// New builds a coordinator for this process instance.
func New(instanceID string, storage Pinger, heartbeats Heartbeats, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		instanceID: instanceID,
		startedAt:  time.Now().UTC(),
		storage:    storage,
		heartbeats: heartbeats,
		logger:     logger,
	}
}

// InstanceID returns this process instance's id.
func (c *Coordinator) InstanceID() string { return c.instanceID }

// Run publishes the instance heartbeat until the context is cancelled, then
// removes the registration.
func (c *Coordinator) Run(ctx context.Context) {
	if c.heartbeats == nil {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	c.beat(ctx)
	for {
		select {
		case <-ctx.Done():
			forgetCtx, cancel := context.WithTimeout(context.Background(), probeTimeout)
			defer cancel()
			if err := c.heartbeats.Forget(forgetCtx, c.instanceID); err != nil {
				c.logger.Warn("failed to remove instance heartbeat", zap.Error(err))
			}
			return
		case <-ticker.C:
			c.beat(ctx)
		}
	}
}

func (c *Coordinator) beat(ctx context.Context) {
	beatCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := c.heartbeats.Beat(beatCtx, c.instanceID, c.startedAt); err != nil {
		c.logger.Warn("instance heartbeat failed", zap.Error(err))
	}
}

// StorageHealthy reports whether the shared storage answers a ping. This is
// the "storage reachable" boolean exposed to the health probe.
func (c *Coordinator) StorageHealthy(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := c.storage.PingContext(probeCtx); err != nil {
		c.logger.Warn("storage probe failed", zap.Error(err))
		return false
	}
	return true
}

// AcceptingWrites reports whether this instance should take write traffic.
// False only while draining; the decision routes traffic and never stands in
// for the storage layer's correctness guarantee.
func (c *Coordinator) AcceptingWrites() bool {
	return !c.draining.Load()
}

// BeginDrain flips the readiness gate ahead of shutdown so the balancer
// moves traffic to the replacement instance before connections close.
func (c *Coordinator) BeginDrain() {
	if c.draining.CompareAndSwap(false, true) {
		c.logger.Info("instance draining, refusing new writes",
			zap.String("instance_id", c.instanceID))
	}
}

// LiveInstances lists instances with fresh heartbeats, this one included.
func (c *Coordinator) LiveInstances(ctx context.Context) ([]string, error) {
	if c.heartbeats == nil {
		return []string{c.instanceID}, nil
	}
	return c.heartbeats.LiveInstances(ctx)
}
