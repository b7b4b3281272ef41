// ABOUTME: Sanity checks for captured clips before they are sent for identification
// ABOUTME: Rejects empty files and, for WAV, clips that are too short or fully silent
package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	ErrEmptyClip  = errors.New("clip is empty")
	ErrShortClip  = errors.New("clip is shorter than required")
	ErrSilentClip = errors.New("clip is silent")
)

func Validate(path, format string, minClip time.Duration) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat clip: %w", err)
	}
	if info.Size() == 0 {
		return ErrEmptyClip
	}

	if format != "wav" {
		return nil
	}
	return validateWAV(path, minClip)
}

func validateWAV(path string, minClip time.Duration) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open clip: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return fmt.Errorf("not a valid wav file")
	}
	if dec.NumChans == 0 || dec.SampleRate == 0 {
		return fmt.Errorf("wav header without channel or rate information")
	}

	buf := &audio.IntBuffer{
		Data: make([]int, 4096),
		Format: &audio.Format{
			NumChannels: int(dec.NumChans),
			SampleRate:  int(dec.SampleRate),
		},
	}

	var samples int
	audible := false
	for {
		n, err := dec.PCMBuffer(buf)
		if n == 0 {
			if err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("read pcm: %w", err)
			}
			break
		}

		samples += n
		if !audible {
			for _, v := range buf.Data[:n] {
				if v != 0 {
					audible = true
					break
				}
			}
		}
	}

	frames := samples / int(dec.NumChans)
	length := time.Duration(frames) * time.Second / time.Duration(dec.SampleRate)
	if length < minClip {
		return fmt.Errorf("%w: %s < %s", ErrShortClip, length, minClip)
	}
	if !audible {
		return ErrSilentClip
	}
	return nil
}
