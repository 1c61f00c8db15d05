package processors

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/roach88/procnet/internal/env"
	"github.com/roach88/procnet/internal/ir"
	"github.com/roach88/procnet/internal/network"
	"github.com/roach88/procnet/internal/port"
	"github.com/roach88/procnet/internal/processor"
	"github.com/roach88/procnet/internal/property"
	"github.com/roach88/procnet/internal/writer"
)

var DataExportInfo = processor.Info{
	ClassIdentifier: "procnet.DataExport",
	DisplayName:     "Data Export",
	Category:        "Data Output",
	CodeState:       processor.Stable,
	Tags:            []string{"export", "sink"},
}

// DataExport writes its input to "file" through the network's writer
// factory. Images use the image writers and everything else is converted to
// a value. With "export_on_change" off it writes only after "export" is
// pressed.
type DataExport struct {
	processor.Base

	In             *port.Inport
	File           *property.String
	Overwrite      *property.Bool
	ExportOnChange *property.Bool
	Export         *property.Button

	writers *writer.Factory
	logger  *slog.Logger

	pressed atomic.Bool
	exports atomic.Int64
}

func NewDataExport(id string, nc *env.Context) (*DataExport, error) {
	d := &DataExport{
		In:             port.NewInport("data", port.Any),
		File:           property.NewString("file", ""),
		Overwrite:      property.NewBool("overwrite", true),
		ExportOnChange: property.NewBool("export_on_change", true),
		Export:         property.NewButton("export"),
		writers:        nc.Writers,
		logger:         nc.Logger.With("processor", id),
	}
	d.Export.AddObserver(property.OnChange(func(property.Property) {
		d.pressed.Store(true)
	}))
	if err := d.Init(d, id, DataExportInfo, processor.Shape{
		Ports:      []port.Port{d.In},
		Properties: []property.Property{d.File, d.Overwrite, d.ExportOnChange, d.Export},
	}); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DataExport) Process(context.Context) error {
	data, err := d.In.Data()
	if err != nil {
		return err
	}
	pressed := d.pressed.Swap(false)
	if !d.ExportOnChange.Get() && !pressed {
		return nil
	}
	path := d.File.Get()
	if path == "" {
		d.logger.Debug("no export file set")
		return nil
	}

	dataType := writer.TypeImage
	if _, ok := data.(image.Image); !ok {
		v, err := ir.FromAny(data)
		if err != nil {
			return fmt.Errorf("export %s: %w", path, err)
		}
		data, dataType = v, writer.TypeValue
	}
	if err := writer.SaveData(d.writers, data, dataType, path, "", writer.Overwrite(d.Overwrite.Get())); err != nil {
		return err
	}
	d.exports.Add(1)
	d.logger.Info("exported", "file", path, "type", dataType)
	return nil
}

// CheckConfiguration rejects a "file" that no registered writer can
// produce for the data the inport may receive.
func (d *DataExport) CheckConfiguration() error {
	path := d.File.Get()
	if path == "" {
		return nil
	}
	candidates := []string{writer.TypeImage, writer.TypeValue}
	if src := d.In.Source(); src != nil {
		switch src.DataType() {
		case port.Image:
			candidates = []string{writer.TypeImage}
		case port.Any:
		default:
			candidates = []string{writer.TypeValue}
		}
	}
	ext := filepath.Ext(path)
	for _, dt := range candidates {
		if _, ok := d.writers.WriterFor(dt, ext); ok {
			return nil
		}
	}
	return &network.ConfigError{
		Code:    network.CodeMissingWriter,
		Message: fmt.Sprintf("no writer for %q", path),
		Path:    d.File.Path(),
		Err:     &writer.DataWriterError{Path: path, Extension: ext, DataType: candidates[len(candidates)-1]},
	}
}

// Exports counts successful writes.
func (d *DataExport) Exports() int {
	return int(d.exports.Load())
}
