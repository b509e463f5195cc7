package audio

import (
	"context"
	"io"
	"os/exec"
	"strconv"

	"github.com/pkg/errors"
)

const (
	SampleRate = 48000
	Channels   = 2
	// FrameSize is the samples per channel in one 20ms voice frame.
	FrameSize = 960
)

// InputFormat describes raw input for ffmpeg. A zero value lets ffmpeg probe
// the stream, which works for containers such as wav.
type InputFormat struct {
	Format     string `json:"Format"`
	SampleRate int    `json:"Sample_rate"`
	Channels   int    `json:"Channels"`
}

func ffmpegArgs(format InputFormat) []string {
	var args []string
	if format.Format != "" {
		args = append(args, "-f", format.Format)
	}
	if format.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(format.SampleRate))
	}
	if format.Channels > 0 {
		args = append(args, "-ac", strconv.Itoa(format.Channels))
	}
	return append(args,
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
		"pipe:1")
}

// DecodeAudioToPCM runs ffmpeg over input and sends 48kHz stereo frames of
// FrameSize*Channels samples to pcm until the input ends or ctx is done.
// pcm is not closed.
func DecodeAudioToPCM(ctx context.Context, input io.Reader, format InputFormat, pcm chan<- []int16) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", ffmpegArgs(format)...)
	cmd.Stdin = input

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "failed to create stdout pipe")
	}

	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "failed to start ffmpeg")
	}

	if err := sendFrames(ctx, stdout, pcm); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return err
	}

	if err := cmd.Wait(); err != nil && ctx.Err() == nil {
		return errors.Wrap(err, "ffmpeg exited with error")
	}
	return nil
}

func sendFrames(ctx context.Context, r io.Reader, pcm chan<- []int16) error {
	buffer := make([]byte, FrameSize*Channels*2)
	for {
		n, err := io.ReadFull(r, buffer)
		if n > 0 {
			// a short last frame is padded with silence
			samples := make([]int16, FrameSize*Channels)
			for i := 0; i < n/2; i++ {
				samples[i] = int16(buffer[2*i]) | int16(buffer[2*i+1])<<8
			}
			select {
			case pcm <- samples:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "error reading from ffmpeg")
		}
	}
}
