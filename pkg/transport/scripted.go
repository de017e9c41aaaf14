package transport

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog"

	"github.com/agentstation/clinicsync/pkg/errors"
	"github.com/agentstation/clinicsync/pkg/logging"
)

//go:embed scripts/demo.yaml
var demoScript []byte

// ErrRefused is reported when a scripted open is configured to fail.
var ErrRefused = errors.New("scripted connection refused")

// Script is a recorded sequence of server behavior.
type Script struct {
	Name  string
	Steps []Step
}

// Step is one scripted action: a pause, a frame, or a server-side close.
type Step struct {
	Delay time.Duration
	Frame []byte
	Close string
}

// scriptFile is the YAML form of a Script.
type scriptFile struct {
	Name  string `yaml:"name"`
	Steps []struct {
		Delay string         `yaml:"delay,omitempty"`
		Frame map[string]any `yaml:"frame,omitempty"`
		Raw   string         `yaml:"raw,omitempty"`
		Close string         `yaml:"close,omitempty"`
	} `yaml:"steps"`
}

// ParseScript parses a YAML script. Structured frames are re-encoded as JSON;
// raw frames are sent verbatim, which allows scripting malformed input.
func ParseScript(data []byte) (*Script, error) {
	var file scriptFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.WrapParse("yaml", "", err)
	}

	script := &Script{Name: file.Name}
	for i, s := range file.Steps {
		var step Step
		switch {
		case s.Delay != "":
			d, err := time.ParseDuration(s.Delay)
			if err != nil {
				return nil, errors.NewValidationError(fmt.Sprintf("steps[%d].delay", i), s.Delay, err.Error())
			}
			step.Delay = d
		case s.Frame != nil:
			frame, err := json.Marshal(s.Frame)
			if err != nil {
				return nil, errors.NewValidationError(fmt.Sprintf("steps[%d].frame", i), nil, err.Error())
			}
			step.Frame = frame
		case s.Raw != "":
			step.Frame = []byte(s.Raw)
		case s.Close != "":
			step.Close = s.Close
		default:
			return nil, errors.NewValidationError(fmt.Sprintf("steps[%d]", i), nil, "empty step")
		}
		script.Steps = append(script.Steps, step)
	}

	return script, nil
}

// LoadScript reads a YAML script from disk.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	script, err := ParseScript(data)
	if err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	return script, nil
}

// DemoScript returns the embedded demonstration script.
func DemoScript() *Script {
	script, err := ParseScript(demoScript)
	if err != nil {
		panic("embedded demo script is invalid: " + err.Error())
	}
	return script
}

// Scripted is an EventSource that plays a Script after each successful open.
// It records every sent frame and can be driven by tests.
type Scripted struct {
	script *Script
	logger *zerolog.Logger

	mu      sync.Mutex
	open    bool
	active  bool
	gen     uint64
	cancel  context.CancelFunc
	handler Handler
	refuse  int
	opens   []string
	sent    [][]byte
}

// ScriptedOption configures a Scripted transport.
type ScriptedOption func(*Scripted)

// WithRefusals makes the next n opens fail.
func WithRefusals(n int) ScriptedOption {
	return func(s *Scripted) {
		s.refuse = n
	}
}

// WithScriptedLogger sets the transport logger.
func WithScriptedLogger(logger *zerolog.Logger) ScriptedOption {
	return func(s *Scripted) {
		s.logger = logger
	}
}

// NewScripted creates a scripted transport. A nil script opens and stays silent.
func NewScripted(script *Script, opts ...ScriptedOption) *Scripted {
	if script == nil {
		script = &Script{Name: "empty"}
	}
	s := &Scripted{script: script, logger: logging.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open implements EventSource.
func (s *Scripted) Open(address string, h Handler) {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.gen++
	gen := s.gen
	s.handler = h
	s.opens = append(s.opens, address)
	refused := s.refuse > 0
	if refused {
		s.refuse--
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	go s.play(ctx, gen, refused, h)
}

func (s *Scripted) play(ctx context.Context, gen uint64, refused bool, h Handler) {
	if refused {
		if s.release(gen) {
			h.OnClose(errors.WrapTransport("dial", "scripted", ErrRefused))
		}
		return
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.open = true
	s.mu.Unlock()

	s.logger.Debug().Str("script", s.script.Name).Msg("Scripted connection open")
	h.OnOpen()

	for _, step := range s.script.Steps {
		switch {
		case step.Delay > 0:
			timer := time.NewTimer(step.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		case step.Frame != nil:
			if !s.current(gen) {
				return
			}
			h.OnMessage(step.Frame)
		case step.Close != "":
			if s.release(gen) {
				h.OnClose(errors.WrapTransport("read", "scripted", errors.New(step.Close)))
			}
			return
		}
	}
}

func (s *Scripted) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen && s.open
}

func (s *Scripted) release(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || !s.active {
		return false
	}
	s.cancel()
	s.open = false
	s.active = false
	return true
}

// Refuse makes the next n opens fail.
func (s *Scripted) Refuse(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refuse = n
}

// Deliver injects a frame as if the server had pushed it.
func (s *Scripted) Deliver(frame []byte) bool {
	s.mu.Lock()
	h, open := s.handler, s.open
	s.mu.Unlock()
	if !open {
		return false
	}
	h.OnMessage(frame)
	return true
}

// Drop ends the connection abnormally, as a network failure would.
func (s *Scripted) Drop(reason error) bool {
	s.mu.Lock()
	gen, h := s.gen, s.handler
	s.mu.Unlock()
	if !s.release(gen) {
		return false
	}
	h.OnClose(errors.WrapTransport("read", "scripted", reason))
	return true
}

// Send implements EventSource.
func (s *Scripted) Send(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return errors.ErrNotConnected
	}
	s.sent = append(s.sent, append([]byte(nil), frame...))
	return nil
}

// Close implements EventSource.
func (s *Scripted) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.open = false
	s.active = false
	s.gen++
}

// IsOpen implements EventSource.
func (s *Scripted) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Opens returns the address of every Open that started a connection.
func (s *Scripted) Opens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.opens...)
}

// Sent returns a copy of every frame sent while open.
func (s *Scripted) Sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.sent))
	copy(out, s.sent)
	return out
}
