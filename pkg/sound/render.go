package sound

import (
	"fmt"
	"io"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/wav"
)

// SampleRate used for rendered songs. The EV3 speaker is a small mono
// transducer so 22.05 kHz is plenty.
const SampleRate = beep.SampleRate(22050)

// Format is the WAV format written by Render.
var Format = beep.Format{
	SampleRate:  SampleRate,
	NumChannels: 1,
	Precision:   2,
}

// Streamer returns a beep streamer that plays the song once at tempo, with
// gap of silence after each note.
func (s Song) Streamer(tempo int, gap time.Duration) (beep.Streamer, error) {
	parts := make([]beep.Streamer, 0, 2*len(s))
	for i, n := range s {
		freq, err := Frequency(n.Pitch)
		if err != nil {
			return nil, fmt.Errorf("note %d: %w", i, err)
		}
		d, err := n.Duration(tempo)
		if err != nil {
			return nil, fmt.Errorf("note %d: %w", i, err)
		}

		samples := SampleRate.N(d)
		if freq == 0 {
			parts = append(parts, beep.Silence(samples))
		} else {
			tone, err := generators.SineTone(SampleRate, freq)
			if err != nil {
				return nil, fmt.Errorf("note %d: %w", i, err)
			}
			parts = append(parts, beep.Take(samples, tone))
		}

		if gap > 0 {
			parts = append(parts, beep.Silence(SampleRate.N(gap)))
		}
	}
	return beep.Seq(parts...), nil
}

// Render writes the song as a WAV file to w.
func Render(w io.WriteSeeker, s Song, tempo int, gap time.Duration) error {
	streamer, err := s.Streamer(tempo, gap)
	if err != nil {
		return err
	}
	if err := wav.Encode(w, streamer, Format); err != nil {
		return fmt.Errorf("failed to encode wav: %w", err)
	}
	return nil
}
