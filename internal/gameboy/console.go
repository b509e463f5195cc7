package gameboy

import (
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"github.com/beefsack/go-rate"
	"github.com/pkg/errors"
)

var ErrThrottled = errors.New("slow down")

// ThrottleError reports how long a user has to wait before the next input.
type ThrottleError struct {
	Remaining time.Duration
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("%v, try again in %s", ErrThrottled, e.Remaining.Round(time.Second))
}

func (e *ThrottleError) Unwrap() error {
	return ErrThrottled
}

type ConsoleOptions struct {
	// HoldFrames is how long each press is held down.
	HoldFrames int
	// SettleFrames run after an input batch before the frame is taken.
	SettleFrames int

	InputsPerUser int
	InputInterval time.Duration
}

// Console shares one emulator between the users of a channel.
type Console struct {
	emu  Emulator
	opts ConsoleOptions

	mu       sync.Mutex
	limiters map[string]*rate.RateLimiter
	presses  int
}

func NewConsole(emu Emulator, opts ConsoleOptions) *Console {
	if opts.HoldFrames <= 0 {
		opts.HoldFrames = 8
	}
	if opts.SettleFrames <= 0 {
		opts.SettleFrames = FramesPerSecond / 2
	}
	return &Console{emu: emu, opts: opts, limiters: make(map[string]*rate.RateLimiter)}
}

// Play applies one message worth of presses for userID and returns the
// resulting screen.
func (c *Console) Play(userID string, presses []Button) (image.Image, error) {
	if err := c.allow(userID); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range presses {
		if err := c.emu.Press(b, c.opts.HoldFrames); err != nil {
			return nil, err
		}
		c.presses++
	}
	if err := c.emu.Step(c.opts.SettleFrames); err != nil {
		return nil, err
	}
	return c.emu.Frame()
}

func (c *Console) Screenshot() (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.emu.Frame()
}

// Clip runs the emulator for count snapshots taken every `every` frames.
func (c *Console) Clip(count, every int) ([]image.Image, error) {
	if count <= 0 || every <= 0 {
		return nil, errors.New("gameboy: clip needs a positive length")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	frames := make([]image.Image, 0, count)
	for i := 0; i < count; i++ {
		if err := c.emu.Step(every); err != nil {
			return nil, err
		}
		f, err := c.emu.Frame()
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, nil
}

// Presses is the number of button presses applied since start.
func (c *Console) Presses() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.presses
}

// Audio is the emulator sound stream.
func (c *Console) Audio() io.Reader {
	return c.emu.Audio()
}

func (c *Console) Close() error {
	return c.emu.Close()
}

func (c *Console) allow(userID string) error {
	if c.opts.InputsPerUser <= 0 || c.opts.InputInterval <= 0 {
		return nil
	}

	c.mu.Lock()
	rl, ok := c.limiters[userID]
	if !ok {
		rl = rate.New(c.opts.InputsPerUser, c.opts.InputInterval)
		c.limiters[userID] = rl
	}
	c.mu.Unlock()

	if ok, remaining := rl.Try(); !ok {
		return &ThrottleError{Remaining: remaining}
	}
	return nil
}
