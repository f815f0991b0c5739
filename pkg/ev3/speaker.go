package ev3

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/teslashibe/go-tablebot/pkg/sound"
)

// Speaker speaks through espeak and plays rendered songs through aplay.
type Speaker struct {
	// SpeakCmd synthesises speech to WAV on stdout; the text is appended
	// as the last argument.
	SpeakCmd []string

	// PlayCmd plays WAV audio. With no extra argument it reads stdin;
	// PlaySong appends a file path.
	PlayCmd []string

	// Tempo for PlaySong in quarter notes per minute.
	Tempo int
}

// NewSpeaker returns a speaker using the ev3dev defaults.
func NewSpeaker() *Speaker {
	return &Speaker{
		SpeakCmd: []string{"espeak", "--stdout", "-a", "200", "-s", "130", "-v", "en"},
		PlayCmd:  []string{"aplay", "-q"},
		Tempo:    sound.DefaultTempo,
	}
}

// Speak says text and returns when playback finishes.
func (s *Speaker) Speak(text string) error {
	if len(s.SpeakCmd) == 0 || len(s.PlayCmd) == 0 {
		return fmt.Errorf("speaker commands not configured")
	}

	args := append(append([]string(nil), s.SpeakCmd[1:]...), text)
	synth := exec.Command(s.SpeakCmd[0], args...)
	play := exec.Command(s.PlayCmd[0], s.PlayCmd[1:]...)

	pipe, err := synth.StdoutPipe()
	if err != nil {
		return fmt.Errorf("speak: %w", err)
	}
	play.Stdin = pipe

	var synthErr, playErr bytes.Buffer
	synth.Stderr = &synthErr
	play.Stderr = &playErr

	if err := play.Start(); err != nil {
		return fmt.Errorf("speak: start %s: %w", s.PlayCmd[0], err)
	}
	if err := synth.Run(); err != nil {
		play.Wait()
		return fmt.Errorf("speak: %s: %w: %s", s.SpeakCmd[0], err, strings.TrimSpace(synthErr.String()))
	}
	if err := play.Wait(); err != nil {
		return fmt.Errorf("speak: %s: %w: %s", s.PlayCmd[0], err, strings.TrimSpace(playErr.String()))
	}
	return nil
}

// PlaySong renders song to a temporary WAV file and plays it.
func (s *Speaker) PlaySong(song sound.Song) error {
	if len(s.PlayCmd) == 0 {
		return fmt.Errorf("play command not configured")
	}

	f, err := os.CreateTemp("", "tablebot-song-*.wav")
	if err != nil {
		return fmt.Errorf("play song: %w", err)
	}
	defer os.Remove(f.Name())

	tempo := s.Tempo
	if tempo <= 0 {
		tempo = sound.DefaultTempo
	}
	if err := sound.Render(f, song, tempo, sound.DefaultGap); err != nil {
		f.Close()
		return fmt.Errorf("play song: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("play song: %w", err)
	}

	args := append(append([]string(nil), s.PlayCmd[1:]...), f.Name())
	out, err := exec.Command(s.PlayCmd[0], args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("play song: %s: %w: %s", s.PlayCmd[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}
