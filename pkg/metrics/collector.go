package metrics

import (
	"strconv"

	"github.com/veritasnet/atlas/pkg/events"
)

// Collector subscribes to the event broker and keeps the gauges and
// counters current.
type Collector struct {
	broker *events.Broker
	sub    events.Subscriber
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewCollector creates a collector on the given broker.
func NewCollector(broker *events.Broker) *Collector {
	return &Collector{
		broker: broker,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start subscribes and begins consuming events.
func (c *Collector) Start() {
	c.sub = c.broker.Subscribe()
	go c.run()
}

// Stop unsubscribes and waits for the consumer to drain.
func (c *Collector) Stop() {
	close(c.stopCh)
	<-c.doneCh
	c.broker.Unsubscribe(c.sub)
}

func (c *Collector) run() {
	defer close(c.doneCh)
	for {
		select {
		case event, ok := <-c.sub:
			if !ok {
				return
			}
			c.observe(event)
		case <-c.stopCh:
			return
		}
	}
}

func (c *Collector) observe(event *events.Event) {
	switch event.Type {
	case events.EventMapRebuilt:
		MapRebuildsTotal.Inc()
		if n, err := strconv.Atoi(event.Metadata["node_count"]); err == nil {
			NodesInMap.Set(float64(n))
		}
		if _, pending := event.Metadata["pending_hash"]; pending {
			PendingUpdate.Set(1)
		} else {
			PendingUpdate.Set(0)
		}
	case events.EventNodePublished:
		NodePublishesTotal.Inc()
	case events.EventParametersUpdated:
		ParameterUpdatesTotal.Inc()
		if epoch, err := strconv.Atoi(event.Metadata["epoch"]); err == nil {
			CurrentEpoch.Set(float64(epoch))
		}
	case events.EventParametersActivated:
		ParameterActivationsTotal.Inc()
	}
}
