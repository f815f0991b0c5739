// Package deliver runs the condiment delivery sequence: position the rack,
// dispense, retract, return, then announce.
package deliver

import (
	"time"

	"github.com/teslashibe/go-tablebot/pkg/command"
)

// Profile holds the motor parameters for one condiment.
type Profile struct {
	// PositionSpeed and PositionDuration drive the band that brings the
	// condiment under the dispenser. The band runs at -PositionSpeed on the
	// way out and +PositionSpeed on the way back.
	PositionSpeed    int
	PositionDuration time.Duration

	// DispenseSpeed and DispenseDuration drive the dispensing arm.
	DispenseSpeed    int
	DispenseDuration time.Duration
}

var profiles = map[command.Condiment]Profile{
	command.CondimentSalt:   {16, 2 * time.Second, 15, 3 * time.Second},
	command.CondimentPepper: {0, 0, 15, 3 * time.Second},
	command.CondimentLemon:  {-16, 2 * time.Second, 15, 3 * time.Second},
}

// Lookup returns the profile for c. CondimentNone and unknown condiments
// have no profile.
func Lookup(c command.Condiment) (Profile, bool) {
	p, ok := profiles[c]
	return p, ok
}
