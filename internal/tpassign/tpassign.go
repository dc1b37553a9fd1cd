// Package tpassign decides which take-profit, if any, each leg of a
// multi-leg trade carries on the venue. Under the none policy no leg gets a
// venue-side take-profit and the full ladder is closed in stages by the
// supervisor; under the other policies the assigned targets live on the
// venue and unassigned ones are discarded.
package tpassign

import "fmt"

// Mode names an assignment policy.
type Mode string

const (
	// ModeNone places no venue-side take-profit on any leg.
	ModeNone Mode = "none"

	// ModeFirstTPFirstTrade puts the first target on the first leg only;
	// every other leg runs without a venue-side take-profit.
	ModeFirstTPFirstTrade Mode = "first_tp_first_trade"

	// ModeCustomMapping assigns per-leg targets from an explicit index
	// list in the configuration.
	ModeCustomMapping Mode = "custom_mapping"
)

// NoTP marks a leg that carries no venue-side take-profit.
const NoTP = -1

// Policy resolves venue-side take-profits for the legs of one trade.
type Policy struct {
	mode    Mode
	mapping []int // target index per leg, NoTP for none; custom_mapping only
}

// New builds a policy. The mapping is only consulted in custom_mapping mode;
// entries are zero-based target indices, NoTP means no take-profit for that
// leg.
func New(mode Mode, mapping []int) (*Policy, error) {
	switch mode {
	case ModeNone, ModeFirstTPFirstTrade:
		return &Policy{mode: mode}, nil
	case ModeCustomMapping:
		return &Policy{mode: mode, mapping: mapping}, nil
	default:
		return nil, fmt.Errorf("tpassign: unknown mode %q", mode)
	}
}

// Mode returns the policy's mode.
func (p *Policy) Mode() Mode { return p.mode }

// Sequential reports whether the policy leaves the whole ladder to staged
// partial closes instead of venue-side take-profits.
func (p *Policy) Sequential() bool { return p.mode == ModeNone }

// Assign returns one take-profit price per leg, 0 meaning none. targets is
// the signal's full ladder in order.
func (p *Policy) Assign(legs int, targets []float64) []float64 {
	out := make([]float64, legs)
	if len(targets) == 0 {
		return out
	}
	switch p.mode {
	case ModeFirstTPFirstTrade:
		out[0] = targets[0]
	case ModeCustomMapping:
		for i := 0; i < legs; i++ {
			if i >= len(p.mapping) {
				continue
			}
			idx := p.mapping[i]
			if idx == NoTP || idx < 0 || idx >= len(targets) {
				continue
			}
			out[i] = targets[idx]
		}
	}
	return out
}
