package hotreload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Reloadable represents a component that can be reloaded
type Reloadable interface {
	Reload(ctx context.Context) error
	Name() string
}

// Coordinator debounces watcher events and reloads every registered
// component once per burst.
type Coordinator struct {
	watcher      *Watcher
	logger       *zap.Logger
	reloadables  map[string]Reloadable
	order        []string
	ctx          context.Context
	cancel       context.CancelFunc
	mu           sync.RWMutex
	debounceTime time.Duration
	wg           sync.WaitGroup
	isRunning    bool
}

// NewCoordinator creates a new reload coordinator
func NewCoordinator(watcher *Watcher, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Coordinator{
		watcher:      watcher,
		logger:       logger,
		reloadables:  make(map[string]Reloadable),
		ctx:          ctx,
		cancel:       cancel,
		debounceTime: 500 * time.Millisecond,
	}
}

// Register adds a reloadable component to the coordinator
func (c *Coordinator) Register(reloadable Reloadable) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := reloadable.Name()
	if _, exists := c.reloadables[name]; exists {
		return fmt.Errorf("reloadable %s already registered", name)
	}

	c.reloadables[name] = reloadable
	c.order = append(c.order, name)
	c.logger.Info("Registered reloadable component", zap.String("name", name))
	return nil
}

// Unregister removes a reloadable component from the coordinator
func (c *Coordinator) Unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.reloadables[name]; !ok {
		return
	}
	delete(c.reloadables, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			break
		}
	}
	c.logger.Info("Unregistered reloadable component", zap.String("name", name))
}

// Start begins the hot reload coordination
func (c *Coordinator) Start() error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return fmt.Errorf("coordinator already running")
	}
	c.isRunning = true
	c.mu.Unlock()

	c.watcher.Start()

	c.wg.Add(1)
	go c.coordinateReloads()

	c.logger.Info("Hot reload coordinator started")
	return nil
}

// Stop stops the hot reload coordination
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return
	}
	c.isRunning = false
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	c.watcher.Stop()

	c.logger.Info("Hot reload coordinator stopped")
}

// coordinateReloads collects events until none arrive for the debounce
// time, then reloads once.
func (c *Coordinator) coordinateReloads() {
	defer c.wg.Done()

	var (
		timer   *time.Timer
		timeout <-chan time.Time
		events  []Event
	)

	for {
		select {
		case <-c.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-c.watcher.Events():
			if !ok {
				return
			}
			events = append(events, event)

			debounce := c.DebounceTime()
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}
			timeout = timer.C

		case <-timeout:
			if len(events) > 0 {
				_ = c.ReloadAll(c.ctx, events)
				events = events[:0]
			}
			timer = nil
			timeout = nil
		}
	}
}

// ReloadAll reloads every registered component in registration order and
// returns the joined errors.
func (c *Coordinator) ReloadAll(ctx context.Context, events []Event) error {
	c.mu.RLock()
	reloadables := make([]Reloadable, 0, len(c.order))
	for _, name := range c.order {
		reloadables = append(reloadables, c.reloadables[name])
	}
	c.mu.RUnlock()

	if len(reloadables) == 0 {
		return nil
	}

	c.logger.Info("Triggering hot reload", zap.Int("events", len(events)))
	for _, event := range events {
		c.logger.Debug("Reload triggered by", zap.String("path", event.Path), zap.String("operation", event.Op.String()))
	}

	var errs []error
	for _, r := range reloadables {
		if err := r.Reload(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to reload %s: %w", r.Name(), err))
			c.logger.Error("Reload error", zap.String("name", r.Name()), zap.Error(err))
			continue
		}
		c.logger.Info("Successfully reloaded component", zap.String("name", r.Name()))
	}

	if len(errs) > 0 {
		c.logger.Error("Hot reload completed with errors", zap.Int("errors", len(errs)))
	} else {
		c.logger.Info("Hot reload completed successfully")
	}
	return errors.Join(errs...)
}

// SetDebounceTime sets the debounce time for reload events
func (c *Coordinator) SetDebounceTime(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debounceTime = d
}

// DebounceTime returns the current debounce time
func (c *Coordinator) DebounceTime() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.debounceTime
}

// IsRunning returns whether the coordinator is currently running
func (c *Coordinator) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isRunning
}
