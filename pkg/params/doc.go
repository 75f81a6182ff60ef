/*
Package params defines network parameters mutations as a closed algebra.

Operators never hand the service a full parameters document. They submit one
of a fixed set of changes, and the service derives the next parameters from
the current ones:

	AddNotary         append a notary (idempotent by identity name)
	RemoveNotary      drop the notary with a given name hash
	AppendWhitelist   union entries into the contract whitelist
	ReplaceWhitelist  swap the whitelist wholesale
	ClearWhitelist    empty the whitelist

Apply is pure and total: the input is never mutated, unknown state is
preserved, and every application bumps the epoch by exactly one and stamps
the modified time. Applying a change that happens to be a no-op on the data
(removing an absent notary, re-adding a present one) still bumps the epoch;
epochs count accepted mutations, not differences.

Transforms adapt changes for the processor queue. SetNotaries is the one
transform that bypasses the change algebra: the directory watcher replaces
the notary set wholesale from certificate files.

Template produces the first-boot parameters: epoch 1, platform version 1,
no notaries, empty whitelist, 10 MiB message limit.

# See Also

  - pkg/processor - Applies transforms, signs and stores the results
  - pkg/api - Parses admin requests into changes
*/
package params
