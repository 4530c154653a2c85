// Package domain defines the core types and store interfaces shared by the
// scanner, executor, and persistence layers.
package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Spread threshold bounds in percent. Values outside this range are rejected
// at the configuration boundary and the previous value is retained.
const (
	MinSpreadThreshold     = 0.1
	MaxSpreadThreshold     = 10.0
	DefaultSpreadThreshold = 1.0
)

// UserConfig is one user's scan configuration. The core only ever sees
// immutable snapshots; all mutation happens in the configstore package, which
// is driven by the external UI layer.
type UserConfig struct {
	UserID int64

	// Venues is the set of selected venue names, in selection order. A scan
	// only runs for a user with at least two venues selected.
	Venues []string

	// Pairs is the set of selected pair indices into the configured pair
	// list. A scan only runs with at least one pair selected.
	Pairs []int

	// Threshold is the minimum spread percentage that qualifies as an
	// opportunity. Always within [MinSpreadThreshold, MaxSpreadThreshold].
	Threshold float64

	// ThresholdPending is set while the user is being prompted for a custom
	// threshold. Scanning continues with the last valid Threshold until the
	// prompt resolves.
	ThresholdPending bool

	// Autotrade enables fully automatic execution of detected opportunities.
	Autotrade bool
}

// Scannable reports whether this configuration qualifies for scanning.
func (c UserConfig) Scannable() bool {
	return len(c.Venues) >= 2 && len(c.Pairs) >= 1
}

// Clone returns a deep copy so callers can hand out snapshots without
// aliasing the store's slices.
func (c UserConfig) Clone() UserConfig {
	out := c
	out.Venues = append([]string(nil), c.Venues...)
	out.Pairs = append([]int(nil), c.Pairs...)
	return out
}

// DexDescriptor identifies a venue by name and its router contract.
type DexDescriptor struct {
	Name   string
	Router common.Address
}

// PairDescriptor is a token pair available for scanning.
type PairDescriptor struct {
	Token0 common.Address
	Token1 common.Address
	Name   string
}

// DisplayName returns the configured name, or a short token0/token1 form when
// none was configured.
func (p PairDescriptor) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("%s/%s", p.Token0.Hex()[:6], p.Token1.Hex()[:6])
}
