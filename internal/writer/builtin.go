package writer

import (
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/roach88/procnet/internal/ir"
)

// PNGWriter writes image.Image data.
type PNGWriter struct{}

func (PNGWriter) DataType() string     { return TypeImage }
func (PNGWriter) Extensions() []string { return []string{"png"} }

func (PNGWriter) Write(w io.Writer, data any) error {
	img, ok := data.(image.Image)
	if !ok {
		return fmt.Errorf("png writer: expected image.Image, got %T", data)
	}
	return png.Encode(w, img)
}

// ValueJSONWriter writes ir.Value data as JSON with sorted keys.
type ValueJSONWriter struct{}

func (ValueJSONWriter) DataType() string     { return TypeValue }
func (ValueJSONWriter) Extensions() []string { return []string{"json"} }

func (ValueJSONWriter) Write(w io.Writer, data any) error {
	v, ok := data.(ir.Value)
	if !ok {
		return fmt.Errorf("json writer: expected ir.Value, got %T", data)
	}
	b, err := ir.MarshalValue(v)
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}
