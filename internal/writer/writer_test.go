package writer

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/procnet/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterForNormalizesExtension(t *testing.T) {
	f := NewDefaultFactory()
	for _, ext := range []string{"png", ".png", "PNG"} {
		_, ok := f.WriterFor(TypeImage, ext)
		assert.True(t, ok, ext)
	}
	_, ok := f.WriterFor(TypeValue, "png")
	assert.False(t, ok, "writers are keyed by data type and extension together")
}

func TestSaveDataMissingWriterIsReported(t *testing.T) {
	f := NewDefaultFactory()
	path := filepath.Join(t.TempDir(), "frame.tiff")

	err := SaveData(f, image.NewRGBA(image.Rect(0, 0, 1, 1)), TypeImage, path, "", AllowOverwrite)
	require.Error(t, err)
	assert.True(t, IsDataWriterError(err))
	assert.Contains(t, err.Error(), "could not find a writer for")
	assert.Contains(t, err.Error(), `"tiff"`)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "nothing is written")
}

func TestSaveDataWritesPNG(t *testing.T) {
	f := NewDefaultFactory()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	path := filepath.Join(t.TempDir(), "out", "frame.png")

	require.NoError(t, SaveData(f, img, TypeImage, path, "", NoOverwrite))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	decoded, _, err := image.Decode(file)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
}

func TestSaveDataRespectsOverwrite(t *testing.T) {
	f := NewDefaultFactory()
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, SaveData(f, ir.Object{"a": ir.Int(1)}, TypeValue, path, "json", NoOverwrite))

	err := SaveData(f, ir.Object{"a": ir.Int(2)}, TypeValue, path, "json", NoOverwrite)
	assert.ErrorIs(t, err, ErrFileExists)

	require.NoError(t, SaveData(f, ir.Object{"a": ir.Int(2)}, TypeValue, path, "json", AllowOverwrite))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"a\":2}\n", string(data))
}

func TestSaveDataAsPicksFirstSupportedExtension(t *testing.T) {
	f := NewDefaultFactory()
	dir := t.TempDir()

	path, err := SaveDataAs(f, ir.String("x"), TypeValue, dir, "state", []string{"yaml", "json"}, AllowOverwrite)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "state.json"), path)
}

func TestSaveDataAsWithoutWriterIsAnError(t *testing.T) {
	f := NewDefaultFactory()
	dir := t.TempDir()

	path, err := SaveDataAs(f, ir.String("x"), TypeValue, dir, "state", []string{"bmp", "tga"}, AllowOverwrite)
	require.Error(t, err)
	assert.True(t, IsDataWriterError(err))
	assert.Contains(t, err.Error(), `"bmp|tga"`)
	assert.Empty(t, path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriterRejectsWrongData(t *testing.T) {
	f := NewDefaultFactory()
	err := SaveData(f, "not an image", TypeImage, filepath.Join(t.TempDir(), "x.png"), "", AllowOverwrite)
	assert.Error(t, err)
	assert.False(t, IsDataWriterError(err))
}

func TestExtensions(t *testing.T) {
	f := NewDefaultFactory()
	assert.Equal(t, []string{"png"}, f.Extensions(TypeImage))
}
