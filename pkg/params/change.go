package params

import (
	"time"

	"github.com/veritasnet/atlas/pkg/types"
)

// Change is the closed set of admissible parameter mutations. Every variant
// is applied through the single Apply dispatcher.
type Change interface {
	isChange()
}

// AddNotary appends a notary; idempotent if the identity is already present.
type AddNotary struct {
	Notary types.NotaryInfo
}

// RemoveNotary removes the single notary whose identity name hashes to
// NameHash; no-op if absent.
type RemoveNotary struct {
	NameHash types.Hash
}

// AppendWhitelist unions entries into the existing whitelist.
type AppendWhitelist struct {
	Entries map[string][]types.Hash
}

// ReplaceWhitelist replaces the whitelist wholesale.
type ReplaceWhitelist struct {
	Entries map[string][]types.Hash
}

// ClearWhitelist empties the whitelist.
type ClearWhitelist struct{}

func (AddNotary) isChange()        {}
func (RemoveNotary) isChange()     {}
func (AppendWhitelist) isChange()  {}
func (ReplaceWhitelist) isChange() {}
func (ClearWhitelist) isChange()   {}

// Apply maps (parameters, change) to new parameters. It is pure and total:
// the input is never mutated, every successful apply bumps the epoch by
// exactly one and sets the modified time, all other fields are preserved.
func Apply(p types.NetworkParameters, c Change, now time.Time) types.NetworkParameters {
	out := clone(p)

	switch change := c.(type) {
	case AddNotary:
		present := false
		for _, n := range out.Notaries {
			if n.Identity.Name == change.Notary.Identity.Name {
				present = true
				break
			}
		}
		if !present {
			out.Notaries = append(out.Notaries, change.Notary)
		}

	case RemoveNotary:
		kept := out.Notaries[:0]
		for _, n := range out.Notaries {
			if n.Identity.NameHash() != change.NameHash {
				kept = append(kept, n)
			}
		}
		out.Notaries = kept

	case AppendWhitelist:
		for fqn, hashes := range change.Entries {
			out.Whitelist[fqn] = unionHashes(out.Whitelist[fqn], hashes)
		}

	case ReplaceWhitelist:
		out.Whitelist = make(map[string][]types.Hash, len(change.Entries))
		for fqn, hashes := range change.Entries {
			out.Whitelist[fqn] = unionHashes(nil, hashes)
		}

	case ClearWhitelist:
		out.Whitelist = make(map[string][]types.Hash)
	}

	return bump(out, now)
}

// SetNotaries replaces the notary list wholesale. The directory watcher uses
// this when the certificate directory changes.
func SetNotaries(notaries []types.NotaryInfo) Transform {
	return func(p types.NetworkParameters, now time.Time) types.NetworkParameters {
		out := clone(p)
		out.Notaries = append([]types.NotaryInfo(nil), notaries...)
		return bump(out, now)
	}
}

// ApplyChange adapts a Change into a Transform for the processor.
func ApplyChange(c Change) Transform {
	return func(p types.NetworkParameters, now time.Time) types.NetworkParameters {
		return Apply(p, c, now)
	}
}

// Transform is a parameters mutation as enqueued on the processor. It must
// bump the epoch, which every params helper does.
type Transform func(types.NetworkParameters, time.Time) types.NetworkParameters

// bump advances epoch and modified time; the one place either field changes.
func bump(p types.NetworkParameters, now time.Time) types.NetworkParameters {
	p.Epoch++
	p.ModifiedTime = now
	return p
}

func clone(p types.NetworkParameters) types.NetworkParameters {
	out := p
	out.Notaries = append([]types.NotaryInfo(nil), p.Notaries...)
	out.Whitelist = make(map[string][]types.Hash, len(p.Whitelist))
	for fqn, hashes := range p.Whitelist {
		out.Whitelist[fqn] = append([]types.Hash(nil), hashes...)
	}
	return out
}

// unionHashes appends new hashes preserving first-seen order, without
// duplicates.
func unionHashes(existing, add []types.Hash) []types.Hash {
	out := append([]types.Hash(nil), existing...)
	seen := make(map[types.Hash]struct{}, len(out))
	for _, h := range out {
		seen[h] = struct{}{}
	}
	for _, h := range add {
		if _, ok := seen[h]; !ok {
			seen[h] = struct{}{}
			out = append(out, h)
		}
	}
	return out
}
