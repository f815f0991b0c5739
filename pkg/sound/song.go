// Package sound describes the short melodies the gadget plays and renders
// them to WAV for playback on the brick speaker.
//
// Notes use scientific pitch names ("C4", "F#5", "Bb3", or "R" for a rest)
// and note values relative to a whole note:
//
//	w  whole      h  half      q  quarter
//	e  eighth     s  sixteenth
//
// A value may be suffixed with "." (dotted, x1.5) or "3" (triplet, x2/3).
package sound

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultTempo is the tempo in quarter notes per minute.
const DefaultTempo = 120

// DefaultGap is the silence inserted after every note.
const DefaultGap = 50 * time.Millisecond

// Rest is the pitch name of a silent note.
const Rest = "R"

// Note is a single pitch held for a note value.
type Note struct {
	Pitch string `json:"pitch"`
	Value string `json:"value"`
}

// Song is an ordered list of notes.
type Song []Note

// Songs played by the gadget.
var (
	Startup   = Song{{"C4", "e"}, {"D4", "e"}, {"E5", "q"}}
	Shutdown  = Song{{"E5", "e"}, {"C4", "e"}}
	Delivered = Song{{"E5", "q"}, {"E5", "q"}}
)

var semitones = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

// Frequency returns the frequency in Hz of a pitch name, using equal
// temperament with A4 = 440 Hz. Rests return 0.
func Frequency(pitch string) (float64, error) {
	p := strings.TrimSpace(pitch)
	if strings.EqualFold(p, Rest) {
		return 0, nil
	}
	if len(p) < 2 {
		return 0, fmt.Errorf("invalid pitch %q", pitch)
	}

	semi, ok := semitones[strings.ToUpper(p[:1])[0]]
	if !ok {
		return 0, fmt.Errorf("invalid pitch letter in %q", pitch)
	}

	rest := p[1:]
	switch rest[0] {
	case '#':
		semi++
		rest = rest[1:]
	case 'b':
		semi--
		rest = rest[1:]
	}

	octave, err := strconv.Atoi(rest)
	if err != nil || octave < 0 || octave > 8 {
		return 0, fmt.Errorf("invalid octave in %q", pitch)
	}

	midi := (octave+1)*12 + semi
	return 440 * math.Pow(2, float64(midi-69)/12), nil
}

// Fraction returns the length of a note value relative to a whole note.
func Fraction(value string) (float64, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, fmt.Errorf("empty note value")
	}

	var base float64
	switch v[0] {
	case 'w':
		base = 1
	case 'h':
		base = 0.5
	case 'q':
		base = 0.25
	case 'e':
		base = 0.125
	case 's':
		base = 0.0625
	default:
		return 0, fmt.Errorf("invalid note value %q", value)
	}

	switch v[1:] {
	case "":
	case ".":
		base *= 1.5
	case "3":
		base *= 2.0 / 3.0
	default:
		return 0, fmt.Errorf("invalid note value modifier in %q", value)
	}
	return base, nil
}

// Duration returns how long the note sounds at tempo.
func (n Note) Duration(tempo int) (time.Duration, error) {
	if tempo <= 0 {
		return 0, fmt.Errorf("tempo must be positive, got %d", tempo)
	}
	frac, err := Fraction(n.Value)
	if err != nil {
		return 0, err
	}
	whole := 4 * time.Minute / time.Duration(tempo)
	return time.Duration(frac * float64(whole)), nil
}

// Validate checks every note of the song.
func (s Song) Validate() error {
	for i, n := range s {
		if _, err := Frequency(n.Pitch); err != nil {
			return fmt.Errorf("note %d: %w", i, err)
		}
		if _, err := Fraction(n.Value); err != nil {
			return fmt.Errorf("note %d: %w", i, err)
		}
	}
	return nil
}

// Length returns the total play time at tempo including gaps.
func (s Song) Length(tempo int, gap time.Duration) (time.Duration, error) {
	var total time.Duration
	for _, n := range s {
		d, err := n.Duration(tempo)
		if err != nil {
			return 0, err
		}
		total += d + gap
	}
	return total, nil
}

// String renders the song as "C4/e D4/e E5/q".
func (s Song) String() string {
	parts := make([]string, len(s))
	for i, n := range s {
		parts[i] = n.Pitch + "/" + n.Value
	}
	return strings.Join(parts, " ")
}
