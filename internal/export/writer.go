package export

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"path"

	"go.uber.org/multierr"
	billy "gopkg.in/src-d/go-billy.v4"

	"terrainstream/internal/config"
	"terrainstream/internal/world"
)

// Writer persists images to a filesystem.
type Writer struct {
	// FS is the directory images are written into.
	FS billy.Filesystem
}

// WritePNG encodes img into name. The image is written to a temporary file
// in the same directory first and renamed into place, so readers never see
// a partial file.
func (w *Writer) WritePNG(name string, img image.Image) error {
	if w == nil || w.FS == nil {
		return errors.New("export: writer has no filesystem")
	}
	if name == "" {
		return errors.New("export: empty file name")
	}

	dir := path.Dir(name)
	if dir != "." {
		if err := w.FS.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	temp, err := w.FS.TempFile(dir, path.Base(name)+".tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", name, err)
	}

	err = png.Encode(temp, img)
	err = multierr.Append(err, temp.Close())
	if err != nil {
		return multierr.Append(fmt.Errorf("encode %s: %w", name, err), w.FS.Remove(temp.Name()))
	}

	if err := w.FS.Rename(temp.Name(), name); err != nil {
		return multierr.Append(fmt.Errorf("rename %s: %w", name, err), w.FS.Remove(temp.Name()))
	}
	return nil
}

// Export bakes the heightmap, and the biome preview when a file name is
// configured. Both files are attempted and every failure is reported.
func (w *Writer) Export(hm *world.Heightmap, cfg config.ExportConfig) error {
	if hm == nil {
		return errors.New("export: nil heightmap")
	}

	var err error
	if cfg.Height != "" {
		err = multierr.Append(err, w.WritePNG(cfg.Height, BakeHeight(hm.Heights)))
	}
	if cfg.Biomes != "" {
		preview, perr := BiomePreview(hm.Biomes, hm.Heights)
		if perr != nil {
			err = multierr.Append(err, perr)
		} else {
			err = multierr.Append(err, w.WritePNG(cfg.Biomes, preview))
		}
	}
	return err
}
