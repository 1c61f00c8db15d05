package cli

import (
	"fmt"
	"io"
	"math"

	"github.com/spf13/cobra"

	"github.com/roach88/procnet/internal/animation"
)

// AnimateOptions holds flags for the animate command.
type AnimateOptions struct {
	*RootOptions
	Database string
	FPS      int
	Duration float64
	Loop     string
	Show     []string
}

// FrameResult is one evaluated animation frame.
type FrameResult struct {
	Frame    int            `json:"frame"`
	Time     float64        `json:"time"`
	State    string         `json:"state"`
	Executed []string       `json:"executed"`
	Failed   []string       `json:"failed,omitempty"`
	Outputs  map[string]any `json:"outputs,omitempty"`
}

// AnimateResult is the output of the animate command.
type AnimateResult struct {
	FPS    int           `json:"fps"`
	Loop   string        `json:"loop"`
	Start  float64       `json:"start"`
	End    float64       `json:"end"`
	Frames []FrameResult `json:"frames"`
}

// NewAnimateCommand creates the animate command.
func NewAnimateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnimateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "animate <network> <animation>",
		Short: "Play an animation against a network frame by frame",
		Long: `Drive network properties from an animation and evaluate every frame.

The animation file is YAML with property tracks and control keyframes.
Frames advance by 1/fps seconds of animation time without waiting on the
wall clock, so the output is reproducible. Playback stops when a pause
keyframe is reached, at the end of a once range, or after --duration
seconds.

Examples:
  procnet animate ./network.yaml ./fade.yaml --show scale.result
  procnet animate ./network.yaml ./fade.yaml --fps 10 --loop swing --duration 6`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnimate(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().IntVar(&opts.FPS, "fps", 0, "frames per second (default from config)")
	cmd.Flags().Float64Var(&opts.Duration, "duration", 0, "seconds to play (default: the animation range)")
	cmd.Flags().StringVar(&opts.Loop, "loop", "", "loop mode once|loop|swing (default from the animation, then config)")
	cmd.Flags().StringArrayVar(&opts.Show, "show", nil, "outport to print per frame (repeatable)")

	return cmd
}

func runAnimate(opts *AnimateOptions, networkPath, animPath string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := opts.formatter(cmd)

	doc, err := LoadNetwork(networkPath)
	if err != nil {
		_ = out.Error(loadErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load network", err)
	}
	def, err := animation.ReadDefinition(animPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load animation", err)
	}

	fps := opts.FPS
	if fps == 0 {
		fps = opts.Config.Animation.FPS
	}
	if fps <= 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("fps must be positive, got %d", fps))
	}
	loop := opts.Loop
	if loop == "" {
		loop = def.Loop
	}
	if loop == "" {
		loop = opts.Config.Animation.Loop
	}
	mode, err := animation.ParseLoopMode(loop)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid loop mode", err)
	}

	s, err := opts.openSession(ctx, doc, sessionConfig{source: networkPath, db: opts.Database, snapshot: networkPath})
	if err != nil {
		return err
	}
	defer s.Close()

	anim, _, err := def.Build(s.net, animation.WithLogger(s.logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to bind animation", err)
	}
	ctrl := animation.NewController(anim,
		animation.WithLoopMode(mode),
		animation.WithControllerLogger(s.logger),
	)
	start, end := ctrl.Range()

	duration := opts.Duration
	if duration <= 0 {
		duration = float64(end - start)
	}
	frames := int(math.Ceil(duration * float64(fps)))
	dt := animation.Seconds(1 / float64(fps))

	result := AnimateResult{FPS: fps, Loop: mode.String(), Start: float64(start), End: float64(end), Frames: []FrameResult{}}

	if err := ctrl.Seek(start); err != nil {
		return WrapExitError(ExitFailure, "failed to apply first frame", err)
	}
	if err := ctrl.Play(); err != nil {
		return WrapExitError(ExitFailure, "failed to start playback", err)
	}

	state := animation.AnimationTimeState{Time: start, State: animation.Playing}
	for frame := 0; frame <= frames; frame++ {
		if frame > 0 {
			if state, err = ctrl.Tick(dt); err != nil {
				s.logger.Warn("animation tick", "frame", frame, "error", err)
			}
		}
		res, err := s.engine.Evaluate(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "evaluation failed", err)
		}
		fr := FrameResult{
			Frame:    frame,
			Time:     float64(state.Time),
			State:    state.State.String(),
			Executed: nonNil(res.Executed),
			Failed:   res.Failed,
		}
		for _, p := range opts.Show {
			if fr.Outputs == nil {
				fr.Outputs = make(map[string]any)
			}
			if data, err := s.outport(p); err != nil {
				fr.Outputs[p] = "error: " + err.Error()
			} else {
				fr.Outputs[p] = describe(data)
			}
		}
		result.Frames = append(result.Frames, fr)
		if state.State != animation.Playing {
			break
		}
	}

	return out.Success(result, func(w io.Writer) { printAnimate(w, result, opts.Show) })
}

func printAnimate(w io.Writer, r AnimateResult, show []string) {
	fmt.Fprintf(w, "Animation %.3gs..%.3gs at %d fps (%s)\n", r.Start, r.End, r.FPS, r.Loop)
	for _, f := range r.Frames {
		fmt.Fprintf(w, "  [%3d] t=%-7.3f %-7s executed %d", f.Frame, f.Time, f.State, len(f.Executed))
		if len(f.Failed) > 0 {
			fmt.Fprintf(w, " failed %d", len(f.Failed))
		}
		for _, p := range show {
			fmt.Fprintf(w, " %s=%v", p, f.Outputs[p])
		}
		fmt.Fprintln(w)
	}
}
