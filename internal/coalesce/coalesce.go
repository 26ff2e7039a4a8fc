// Package coalesce groups classified channel messages into per-channel
// batches. A batch flushes after a quiet window with no new messages in that
// channel; every append pushes the deadline out again. Flushing happens off
// the coalescer lock so a slow downstream session never blocks intake.
package coalesce

import (
	"context"
	"sync"
	"time"

	"github.com/infera-ai/infera/internal/observability"
)

// Flush triggers, used as the metric label.
const (
	TriggerTimer  = "timer"
	TriggerForced = "forced"
)

// Message is one classified Slack message waiting in a batch.
type Message struct {
	UserID     string  `json:"user_id"`
	Text       string  `json:"text"`
	Timestamp  string  `json:"timestamp"`
	Permalink  string  `json:"permalink,omitempty"`
	SenderName string  `json:"sender_name,omitempty"`
	SenderRole string  `json:"sender_role,omitempty"`
	Label      string  `json:"classification"`
	Confidence float64 `json:"confidence"`
	ReceivedAt time.Time
}

// Batch is a flushed group of messages from one channel, carrying the tenant
// context resolved at intake time.
type Batch struct {
	ChannelID   string
	ChannelName string
	TenantID    int64
	Messages    []*Message
	FirstAt     time.Time
	LastAt      time.Time
}

// FlushFunc receives a detached batch. It runs outside the coalescer lock and
// may block on network calls.
type FlushFunc func(batch *Batch, trigger string)

type pending struct {
	batch *Batch
	timer *time.Timer
}

// Coalescer accumulates messages per channel and flushes after the window of
// inactivity elapses.
type Coalescer struct {
	mu      sync.Mutex
	pending map[string]*pending
	stopped bool

	window  time.Duration
	onFlush FlushFunc
	logger  *observability.Logger
	metrics *observability.Metrics

	// wg tracks in-flight flush callbacks so Stop can drain them.
	wg sync.WaitGroup
}

// New creates a coalescer. A non-positive window falls back to 30 seconds.
func New(window time.Duration, onFlush FlushFunc, logger *observability.Logger, metrics *observability.Metrics) *Coalescer {
	if window <= 0 {
		window = 30 * time.Second
	}
	return &Coalescer{
		pending: make(map[string]*pending),
		window:  window,
		onFlush: onFlush,
		logger:  logger,
		metrics: metrics,
	}
}

// Window returns the configured inactivity window.
func (c *Coalescer) Window() time.Duration {
	return c.window
}

// Append adds a message to the channel's batch, creating the batch if none is
// pending, and resets the flush timer.
func (c *Coalescer) Append(channelID, channelName string, tenantID int64, msg *Message) {
	now := time.Now()
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = now
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}

	p, exists := c.pending[channelID]
	if !exists {
		p = &pending{
			batch: &Batch{
				ChannelID:   channelID,
				ChannelName: channelName,
				TenantID:    tenantID,
				FirstAt:     now,
			},
		}
		c.pending[channelID] = p
	}

	p.batch.Messages = append(p.batch.Messages, msg)
	p.batch.LastAt = now
	if channelName != "" {
		p.batch.ChannelName = channelName
	}

	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(c.window, func() {
		c.flushTimer(channelID, p)
	})

	c.logger.Debug(context.Background(), "message coalesced",
		"channel_id", channelID,
		"batch_size", len(p.batch.Messages),
		"window", c.window,
	)
}

// flushTimer fires from the batch timer. The pending entry may already have
// been detached by a forced flush or a newer timer, so it is re-checked under
// the lock before anything is flushed.
func (c *Coalescer) flushTimer(channelID string, expected *pending) {
	c.mu.Lock()
	p, ok := c.pending[channelID]
	if !ok || p != expected || c.stopped {
		c.mu.Unlock()
		return
	}
	batch := c.detachLocked(channelID, p)
	c.mu.Unlock()

	c.dispatch(batch, TriggerTimer)
}

// ForceFlush flushes the channel's batch immediately. Returns false when no
// batch is pending.
func (c *Coalescer) ForceFlush(channelID string) bool {
	c.mu.Lock()
	p, ok := c.pending[channelID]
	if !ok {
		c.mu.Unlock()
		return false
	}
	batch := c.detachLocked(channelID, p)
	c.mu.Unlock()

	c.dispatch(batch, TriggerForced)
	return true
}

// detachLocked removes the pending entry and stops its timer. Must be called
// with c.mu held. Once detached, a late timer fire for the old entry is a
// no-op.
func (c *Coalescer) detachLocked(channelID string, p *pending) *Batch {
	delete(c.pending, channelID)
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	return p.batch
}

// dispatch runs the flush callback outside the lock.
func (c *Coalescer) dispatch(batch *Batch, trigger string) {
	if batch == nil || len(batch.Messages) == 0 {
		return
	}

	if c.metrics != nil {
		c.metrics.BatchFlushes.WithLabelValues(trigger).Inc()
		c.metrics.BatchSize.Observe(float64(len(batch.Messages)))
	}
	c.logger.Info(context.Background(), "flushing batch",
		"channel_id", batch.ChannelID,
		"channel_name", batch.ChannelName,
		"messages", len(batch.Messages),
		"trigger", trigger,
	)

	c.wg.Add(1)
	defer c.wg.Done()
	c.onFlush(batch, trigger)
}

// Status reports one channel's pending batch.
type Status struct {
	ChannelID        string    `json:"channel_id"`
	ChannelName      string    `json:"channel_name,omitempty"`
	Messages         int       `json:"message_count"`
	FirstAt          time.Time `json:"first_message_at"`
	LastAt           time.Time `json:"last_message_at"`
	SecondsRemaining float64   `json:"seconds_remaining"`
}

// Status returns the pending batch for a channel, or ok=false when none.
func (c *Coalescer) Status(channelID string) (Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[channelID]
	if !ok {
		return Status{}, false
	}
	return c.statusLocked(channelID, p), true
}

// StatusAll returns the status of every pending batch.
func (c *Coalescer) StatusAll() []Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Status, 0, len(c.pending))
	for id, p := range c.pending {
		out = append(out, c.statusLocked(id, p))
	}
	return out
}

func (c *Coalescer) statusLocked(channelID string, p *pending) Status {
	remaining := c.window - time.Since(p.batch.LastAt)
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		ChannelID:        channelID,
		ChannelName:      p.batch.ChannelName,
		Messages:         len(p.batch.Messages),
		FirstAt:          p.batch.FirstAt,
		LastAt:           p.batch.LastAt,
		SecondsRemaining: remaining.Seconds(),
	}
}

// Stop flushes every pending batch synchronously and rejects further appends.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true

	var batches []*Batch
	for id, p := range c.pending {
		batches = append(batches, c.detachLocked(id, p))
	}
	c.mu.Unlock()

	for _, batch := range batches {
		c.dispatch(batch, TriggerForced)
	}
	c.wg.Wait()
}
