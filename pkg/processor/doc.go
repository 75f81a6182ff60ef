/*
Package processor contains the single-writer core of the network map
service.

Every mutation of network state runs on one worker goroutine. Node
registrations, parameter updates, scheduled activations and map rebuilds
all serialize through the same task queue, so no two mutations ever
interleave and no store-level locking is needed.

# Architecture

	┌────────────────────── PROCESSOR ──────────────────────────┐
	│                                                           │
	│  AddNode / DeleteNode / UpdateParameters                  │
	│        │                                                  │
	│        ▼                                                  │
	│  ┌───────────────┐     ┌───────────────────────────────┐  │
	│  │  task queue   │────▶│        worker goroutine       │  │
	│  │  (chan, 64)   │     │  - verify and store node info │  │
	│  └───────────────┘     │  - sign and store parameters  │  │
	│        ▲               │  - rebuild and sign the map   │  │
	│        │               │  - activate pending updates   │  │
	│  ┌───────────────┐     └──────────┬────────────────────┘  │
	│  │  timers       │                │                       │
	│  │  - rebuild    │◀───────────────┘ (armed by tasks)      │
	│  │  - activation │                                        │
	│  └───────────────┘                                        │
	│        ▲                                                  │
	│  ┌───────────────┐                                        │
	│  │  dir watcher  │  notary certificates changed           │
	│  └───────────────┘                                        │
	└───────────────────────────────────────────────────────────┘

Callers receive a Future per submitted task and can wait for the mutation
to be applied or rejected. Timer callbacks and the watcher callback never
touch state directly; they enqueue tasks like everyone else. The two timer
fields themselves are worker-goroutine state, touched only from tasks.

# Startup Sequence

Start establishes the initial state synchronously and fails fast:

 1. Refuse to start without an initialized signing authority.
 2. Create template parameters if no current-parameters pointer exists.
    An existing pointer is left untouched, so restarts never mint
    parameters or burn epochs.
 3. Build and sign the initial network map.
 4. Install the notary directory watcher, if configured.

# Map Rebuilds

Rebuilds are debounced: a mutation schedules a rebuild NetworkMapDelay in
the future, and a newer mutation resets the timer. A burst of publishes
therefore coalesces into one signed map. With a zero delay rebuilds run
inline, which the tests rely on for determinism.

# Parameter Updates

An update signs and stores the next parameters immediately, but activation
is a separate step. An activation time at or before now flips the
current-parameters pointer in place. A future activation stores a pending
update, advertises it in the network map, and arms a timer; when the timer
fires, whatever pending update is stored at that moment is applied, so a
replaced update can never resurrect its predecessor.

# Name Conflicts

A publish claiming an identity name that is already registered with a
different owning key is rejected with ErrNameConflict and leaves no trace.
The same key republishing under the same name is an update, not a
conflict.

# See Also

  - pkg/params - The mutations the processor applies
  - pkg/watcher - Notary certificate directory polling
  - pkg/api - The HTTP surface over the processor
*/
package processor
