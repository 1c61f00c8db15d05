package cli

import (
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/procnet/internal/export"
	"github.com/roach88/procnet/internal/ir"
	"github.com/roach88/procnet/internal/writer"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Output    string
	Port      string
	Canvas    string
	Overwrite bool
}

// ExportResult is the output of the export command.
type ExportResult struct {
	Path     string `json:"path"`
	DataType string `json:"data_type"`
	Source   string `json:"source"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <network>",
		Short: "Write a network, an outport or a canvas to a file",
		Long: `Export a network or one of its results.

Without --port or --canvas the built network is written; the output
extension picks the format (yaml, yml, json, dot, gv, svg). With --port
the network is evaluated and the outport data is written (png for images,
json for values). With --canvas the last frame of the named canvas is
written as png.

Examples:
  procnet export ./network.yaml -o graph.svg
  procnet export ./network.cue -o network.json
  procnet export ./network.yaml --port gradient.image -o out.png
  procnet export ./network.yaml --canvas main -o frame.png`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (required)")
	_ = cmd.MarkFlagRequired("output")
	cmd.Flags().StringVar(&opts.Port, "port", "", "outport to export (processor.port)")
	cmd.Flags().StringVar(&opts.Canvas, "canvas", "", "canvas to export")
	cmd.Flags().BoolVar(&opts.Overwrite, "overwrite", false, "replace an existing output file")

	return cmd
}

func runExport(opts *ExportOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := opts.formatter(cmd)

	if opts.Port != "" && opts.Canvas != "" {
		return NewExitError(ExitCommandError, "--port and --canvas are mutually exclusive")
	}
	doc, err := LoadNetwork(path)
	if err != nil {
		_ = out.Error(loadErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load network", err)
	}
	s, err := opts.openSession(ctx, doc, sessionConfig{source: path})
	if err != nil {
		return err
	}
	defer s.Close()

	var data any = s.net
	dataType := export.TypeNetwork
	source := "network"

	if opts.Port != "" || opts.Canvas != "" {
		res, err := s.engine.Evaluate(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "evaluation failed", err)
		}
		if len(res.Failed) > 0 {
			return NewExitError(ExitFailure, fmt.Sprintf("evaluation failed: %s", strings.Join(res.Failed, ", ")))
		}
	}
	switch {
	case opts.Port != "":
		source = opts.Port
		if data, dataType, err = portData(s, opts.Port); err != nil {
			return WrapExitError(ExitCommandError, "cannot export port", err)
		}
	case opts.Canvas != "":
		source = "canvas " + opts.Canvas
		frame := s.canvases.Offscreen(opts.Canvas).Frame()
		if frame == nil {
			return NewExitError(ExitCommandError, fmt.Sprintf("canvas %q has no frame", opts.Canvas))
		}
		data, dataType = frame, writer.TypeImage
	}

	err = writer.SaveData(s.nc.Writers, data, dataType, opts.Output, "", writer.Overwrite(opts.Overwrite))
	if err != nil {
		_ = out.Error(ErrCodeWriteFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "export failed", err)
	}

	result := ExportResult{Path: opts.Output, DataType: dataType, Source: source}
	return out.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Wrote %s (%s)\n", result.Path, result.Source)
	})
}

// portData reads an outport and picks the writer data type for it.
func portData(s *session, path string) (any, string, error) {
	data, err := s.outport(path)
	if err != nil {
		return nil, "", err
	}
	if img, ok := data.(image.Image); ok {
		return img, writer.TypeImage, nil
	}
	v, err := ir.FromAny(data)
	if err != nil {
		return nil, "", err
	}
	return v, writer.TypeValue, nil
}
