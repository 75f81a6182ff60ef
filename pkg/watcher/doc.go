/*
Package watcher polls a directory and fires a callback when its contents
change.

The watcher computes an order-independent SHA-256 digest over the files
matching a glob pattern: each file's content is hashed, the hashes are
sorted and hashed again. Renames that preserve content do not change the
digest; any content change, addition or removal does.

The initial digest is the empty string, so the first scan always fires.
Consumers that only care about differences from their current state are
expected to compare and ignore, which is exactly what the processor's
notary handler does.

Callbacks run on the watcher's own goroutine, never concurrently. Stop
waits for an in-flight callback to return.
*/
package watcher
