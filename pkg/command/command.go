// Package command interprets control payloads sent by the companion device.
//
// A payload is a small JSON object whose "type" selects between a move and
// a deliver command. Direction tokens come from spoken slot values, so each
// motion class accepts a fixed set of synonyms.
package command

import "sort"

// Type identifies the kind of control command.
type Type string

const (
	TypeMove    Type = "move"
	TypeDeliver Type = "deliver"
)

// Direction is a motion class selected by a direction token.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionForward
	DirectionBackward
	DirectionLeft
	DirectionRight
	DirectionStop
)

// synonyms maps each motion class to the tokens that select it.
var synonyms = map[Direction][]string{
	DirectionForward:  {"forward", "forwards", "go forward"},
	DirectionBackward: {"back", "backward", "backwards", "go backward"},
	DirectionLeft:     {"left", "go left"},
	DirectionRight:    {"right", "go right"},
	DirectionStop:     {"stop", "brake"},
}

// tokenIndex is the reverse of synonyms.
var tokenIndex = func() map[string]Direction {
	idx := make(map[string]Direction)
	for dir, tokens := range synonyms {
		for _, tok := range tokens {
			idx[tok] = dir
		}
	}
	return idx
}()

// ParseDirection returns the motion class whose synonym set contains token.
// Membership is exact; unknown tokens, including differently cased or
// padded ones, return DirectionNone and false.
func ParseDirection(token string) (Direction, bool) {
	dir, ok := tokenIndex[token]
	if !ok {
		return DirectionNone, false
	}
	return dir, true
}

// Synonyms returns a copy of the tokens accepted for d.
func (d Direction) Synonyms() []string {
	return append([]string(nil), synonyms[d]...)
}

// String returns the canonical name of the direction.
func (d Direction) String() string {
	switch d {
	case DirectionForward:
		return "forward"
	case DirectionBackward:
		return "backward"
	case DirectionLeft:
		return "left"
	case DirectionRight:
		return "right"
	case DirectionStop:
		return "stop"
	default:
		return "none"
	}
}

// Directions lists every motion class in declaration order.
func Directions() []Direction {
	return []Direction{
		DirectionForward,
		DirectionBackward,
		DirectionLeft,
		DirectionRight,
		DirectionStop,
	}
}

// Condiment selects the deliver profile.
type Condiment string

const (
	CondimentNone   Condiment = ""
	CondimentSalt   Condiment = "salt"
	CondimentPepper Condiment = "pepper"
	CondimentLemon  Condiment = "lemon"
)

// ParseCondiment validates a spice selector. The empty string is valid and
// means nothing is delivered. Names must match exactly.
func ParseCondiment(s string) (Condiment, bool) {
	switch c := Condiment(s); c {
	case CondimentNone, CondimentSalt, CondimentPepper, CondimentLemon:
		return c, true
	default:
		return c, false
	}
}

// Condiments lists the deliverable condiments, sorted by name.
func Condiments() []Condiment {
	out := []Condiment{CondimentSalt, CondimentPepper, CondimentLemon}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Command is a parsed control payload. It lives only for the duration of
// one directive.
type Command struct {
	Type Type

	// Direction is the raw token; resolve it with ParseDirection.
	Direction string

	// Duration in seconds.
	Duration int

	// Speed as a signed percentage of full motor speed.
	Speed int

	// Condiment is only set for deliver commands. It carries the raw
	// selector; resolve it with ParseCondiment.
	Condiment string
}
