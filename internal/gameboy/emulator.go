package gameboy

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"cogbot/internal/config"
)

const (
	ScreenWidth  = 160
	ScreenHeight = 144

	// FramesPerSecond is the DMG refresh rate, rounded.
	FramesPerSecond = 60
)

var (
	ErrClosed  = errors.New("emulator closed")
	ErrTimeout = errors.New("emulator did not answer in time")
)

// Emulator is a running Game Boy.
type Emulator interface {
	// Press holds the button for the given number of frames.
	Press(b Button, frames int) error
	Step(frames int) error
	Frame() (image.Image, error)
	// Audio streams the sound output produced while stepping.
	Audio() io.Reader
	Close() error
}

type ProcessOptions struct {
	Command string
	Args    []string
	ROM     string
	Env     []string
	// Timeout bounds one command, an emulator that misses it is killed.
	Timeout time.Duration
}

const (
	defaultTimeout = 10 * time.Second
	// audioBacklog is how many unread audio chunks are kept, older ones are dropped.
	audioBacklog = 32
	audioChunk   = 4096
)

// closeGrace is how long Close waits for the emulator to exit on its own.
var closeGrace = 5 * time.Second

// ProcessEmulator drives a headless emulator binary over a line protocol.
// Commands go to stdin one per line ("press a 8", "step 60", "frame").
// Each command is answered on stdout with a status byte (0 ok, 1 error), a
// big-endian uint32 length and a payload: empty for press and step, a PNG for
// frame, the message for an error.
// Audio is read from file descriptor 3 of the child and always drained, so
// the child never blocks on it while nobody listens.
type ProcessEmulator struct {
	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Reader
	audio   *audioTap
	timeout time.Duration

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// maxPayload guards against a desynchronised stream being read as a huge length.
const maxPayload = 16 << 20

func NewProcessEmulator(ctx context.Context, opts ProcessOptions) (*ProcessEmulator, error) {
	if opts.Command == "" {
		return nil, errors.New("gameboy: no emulator command configured")
	}

	args := append([]string{}, opts.Args...)
	if opts.ROM != "" {
		args = append(args, opts.ROM)
	}
	cmd := exec.CommandContext(ctx, opts.Command, args...)
	cmd.Env = append(os.Environ(), opts.Env...)
	cmd.Stderr = logWriter{}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "gameboy: stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "gameboy: stdout pipe")
	}
	audioR, audioW, err := os.Pipe()
	if err != nil {
		return nil, errors.Wrap(err, "gameboy: audio pipe")
	}
	cmd.ExtraFiles = []*os.File{audioW}

	if err := cmd.Start(); err != nil {
		audioR.Close()
		audioW.Close()
		return nil, errors.Wrapf(err, "gameboy: start %s", opts.Command)
	}
	// the child holds its own copy, ours would keep the reader from seeing EOF
	audioW.Close()

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	config.Logger.Infof("Started emulator %s (pid %d)", opts.Command, cmd.Process.Pid)
	return &ProcessEmulator{
		cmd:     cmd,
		stdin:   stdin,
		stdout:  bufio.NewReader(stdout),
		audio:   newAudioTap(audioR),
		timeout: timeout,
	}, nil
}

func (e *ProcessEmulator) Press(b Button, frames int) error {
	if _, ok := aliases[string(b)]; !ok {
		return fmt.Errorf("gameboy: unknown button %q", b)
	}
	_, err := e.roundTrip(fmt.Sprintf("press %s %d", b, frames))
	return err
}

func (e *ProcessEmulator) Step(frames int) error {
	_, err := e.roundTrip(fmt.Sprintf("step %d", frames))
	return err
}

func (e *ProcessEmulator) Frame() (image.Image, error) {
	payload, err := e.roundTrip("frame")
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "gameboy: decode frame")
	}
	return img, nil
}

func (e *ProcessEmulator) Audio() io.Reader {
	return e.audio
}

// Close does not wait for a command in flight: closing stdin asks the
// emulator to exit and it is killed if it has not after closeGrace.
func (e *ProcessEmulator) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		e.stdin.Close()

		kill := time.AfterFunc(closeGrace, func() {
			config.Logger.Warnf("Emulator pid %d did not exit, killing it", e.cmd.Process.Pid)
			_ = e.cmd.Process.Kill()
		})
		err := e.cmd.Wait()
		kill.Stop()
		if err != nil {
			e.closeErr = errors.Wrap(err, "gameboy: emulator exited")
		}
	})
	return e.closeErr
}

func (e *ProcessEmulator) roundTrip(command string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		return nil, ErrClosed
	}

	var expired atomic.Bool
	watchdog := time.AfterFunc(e.timeout, func() {
		expired.Store(true)
		config.Logger.Warnf("Emulator did not answer %q in %s, killing it", command, e.timeout)
		_ = e.cmd.Process.Kill()
	})
	defer watchdog.Stop()

	payload, status, err := e.exchange(command)
	if expired.Load() {
		return nil, errors.Wrapf(ErrTimeout, "gameboy: %s", command)
	}
	if err != nil {
		return nil, err
	}
	if status != statusOK {
		return nil, fmt.Errorf("gameboy: %s: %s", command, payload)
	}
	return payload, nil
}

func (e *ProcessEmulator) exchange(command string) ([]byte, byte, error) {
	if _, err := io.WriteString(e.stdin, command+"\n"); err != nil {
		return nil, 0, errors.Wrapf(err, "gameboy: send %q", command)
	}

	var header [5]byte
	if _, err := io.ReadFull(e.stdout, header[:]); err != nil {
		return nil, 0, errors.Wrapf(err, "gameboy: read reply to %q", command)
	}
	status, size := header[0], binary.BigEndian.Uint32(header[1:])
	if size > maxPayload {
		return nil, 0, fmt.Errorf("gameboy: reply of %d bytes to %q", size, command)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(e.stdout, payload); err != nil {
		return nil, 0, errors.Wrapf(err, "gameboy: read reply to %q", command)
	}
	return payload, status, nil
}

// audioTap keeps reading the emulator sound output. Readers get the most
// recent audioBacklog chunks, anything older is dropped.
type audioTap struct {
	chunks chan []byte
	buf    []byte
}

func newAudioTap(r io.ReadCloser) *audioTap {
	t := &audioTap{chunks: make(chan []byte, audioBacklog)}
	go t.drain(r)
	return t
}

func (t *audioTap) drain(r io.ReadCloser) {
	defer close(t.chunks)
	defer r.Close()
	for {
		buf := make([]byte, audioChunk)
		n, err := r.Read(buf)
		if n > 0 {
			t.push(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

func (t *audioTap) push(chunk []byte) {
	for {
		select {
		case t.chunks <- chunk:
			return
		default:
		}
		select {
		case <-t.chunks:
		default:
		}
	}
}

// Read returns io.EOF once the emulator has exited and the backlog is read.
func (t *audioTap) Read(p []byte) (int, error) {
	if len(t.buf) == 0 {
		chunk, ok := <-t.chunks
		if !ok {
			return 0, io.EOF
		}
		t.buf = chunk
	}
	n := copy(p, t.buf)
	t.buf = t.buf[n:]
	return n, nil
}

const (
	statusOK    byte = 0
	statusError byte = 1
)

// WriteReply writes one protocol reply. Emulator front-ends written in Go use it.
func WriteReply(w io.Writer, payload []byte, failed bool) error {
	header := [5]byte{statusOK}
	if failed {
		header[0] = statusError
	}
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// logWriter forwards emulator stderr to the logger.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	config.Logger.Debugf("emulator: %s", bytes.TrimSpace(p))
	return len(p), nil
}
