// Package decode implements the decode command.
package decode

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentstation/clinicsync/cmd/application"
	"github.com/agentstation/clinicsync/internal/cmd/output"
	"github.com/agentstation/clinicsync/pkg/constants"
	"github.com/agentstation/clinicsync/pkg/errors"
	"github.com/agentstation/clinicsync/pkg/events"
	"github.com/agentstation/clinicsync/pkg/transport"
)

// ErrInvalidFrames is returned with --strict when any frame fails to decode.
var ErrInvalidFrames = errors.New("input contains invalid frames")

// NewCommand creates the decode command.
func NewCommand(app application.Application) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:     "decode <file|->",
		GroupID: "tools",
		Short:   "Validate recorded frames offline",
		Long: `Decode runs frames through the same decoder the client uses and
reports the kind of each valid frame and the reason each invalid one
would be dropped.

YAML files (.yaml, .yml) are read as scripts for the scripted source.
Anything else is read as one JSON frame per line; "-" reads stdin.`,
		Example: `  clinicsync decode capture.jsonl
  clinicsync decode demo.yaml -o json
  tail -n 100 capture.jsonl | clinicsync decode - --strict`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			frames, err := readFrames(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			results := Frames(frames)
			formatter := output.NewFormatter(output.DetectFormat(app.OutputFormat()))
			if err := formatter.Format(cmd.OutOrStdout(), output.FramesView(results)); err != nil {
				return err
			}

			invalid := 0
			for _, r := range results {
				if !r.Valid {
					invalid++
				}
			}
			app.Logger().Debug().Int("frames", len(results)).Int("invalid", invalid).Msg("Decoded input")
			if strict && invalid > 0 {
				return fmt.Errorf("%w: %d of %d", ErrInvalidFrames, invalid, len(results))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "exit with an error if any frame is invalid")

	return cmd
}

// Frames decodes each frame and classifies the outcome.
func Frames(frames [][]byte) []output.FrameResult {
	results := make([]output.FrameResult, 0, len(frames))
	for i, frame := range frames {
		result := output.FrameResult{Index: i}
		env, err := events.Decode(frame)
		if err != nil {
			result.Error = err.Error()
			var de *errors.DecodeError
			if errors.As(err, &de) {
				result.Kind = events.Kind(de.Kind)
				result.Reason = string(de.Reason)
			}
		} else {
			result.Kind = env.Kind
			result.Valid = true
		}
		results = append(results, result)
	}
	return results
}

// readFrames loads frames from a script or a JSON lines file.
func readFrames(path string, stdin io.Reader) ([][]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		script, err := transport.LoadScript(path)
		if err != nil {
			return nil, err
		}
		var frames [][]byte
		for _, step := range script.Steps {
			if step.Frame != nil {
				frames = append(frames, step.Frame)
			}
		}
		return frames, nil
	}

	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return readLines(r)
}

// readLines splits r into non-blank lines.
func readLines(r io.Reader) ([][]byte, error) {
	var frames [][]byte
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), constants.MaxFrameSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		frames = append(frames, bytes.Clone(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.WrapParse("jsonl", "", err)
	}
	return frames, nil
}
