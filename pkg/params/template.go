package params

import (
	"math"
	"time"

	"github.com/veritasnet/atlas/pkg/types"
)

const (
	// TemplateMaxMessageSize is the initial maximum message size: 10 MiB.
	TemplateMaxMessageSize = 10485760
	// TemplateMaxTransactionSize is the initial maximum transaction size.
	TemplateMaxTransactionSize = math.MaxInt32
)

// Template returns the first-boot network parameters: epoch 1, platform
// version 1, no notaries, empty whitelist.
func Template(now time.Time) types.NetworkParameters {
	return types.NetworkParameters{
		MinimumPlatformVersion: 1,
		Notaries:               nil,
		MaxMessageSize:         TemplateMaxMessageSize,
		MaxTransactionSize:     TemplateMaxTransactionSize,
		ModifiedTime:           now,
		Epoch:                  1,
		Whitelist:              make(map[string][]types.Hash),
	}
}
