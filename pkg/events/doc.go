/*
Package events provides an in-memory event broker for the service's pub/sub
messaging.

The broker broadcasts network map lifecycle events to interested
subscribers: map rebuilds, node publishes and deletions, parameter updates,
activations and acknowledgements, and notary set changes. Delivery is
asynchronous and non-blocking; a subscriber that stops draining its channel
loses events rather than stalling the publisher.

# Event Flow

	Publisher → event channel (buffer: 100)
	     ↓
	broadcast loop
	     ↓
	subscriber channels (buffer: 50 each)

Events carry a type, a human-readable message and a string metadata map.
The metrics collector is the main consumer; tests subscribe to observe
rebuild coalescing.

# See Also

  - pkg/metrics - Turns events into Prometheus series
  - pkg/processor - The main publisher
*/
package events
