package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/analysis"
	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/model"
	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/tables"
)

// CBORFile is the name of the combined re-export inside the output directory.
const CBORFile = "devices.cbor"

// Document is the JSON written for each completed device.
type Document struct {
	ExportedAt time.Time       `json:"exported_at"`
	Device     *model.Device   `json:"device"`
	Report     analysis.Report `json:"report"`
	// CBORSHA256 is the digest of the combined re-export written alongside.
	CBORSHA256 string `json:"cbor_sha256"`
}

// Options configures a FileSink.
type Options struct {
	// Dir receives the files. It is created on first export.
	Dir string
	// Extended selects the extended phase set for reports.
	Extended bool
	// Tables names pins in reports. Nil uses tables.Default().
	Tables *tables.Tables
	CBOR   CBOROptions
	// Now stamps documents and file names. Nil uses time.Now.
	Now func() time.Time
}

// FileSink writes exports to a directory. It implements collector.Sink.
type FileSink struct {
	log  zerolog.Logger
	opts Options
}

// NewFileSink creates a FileSink.
func NewFileSink(log zerolog.Logger, opts Options) *FileSink {
	if opts.Tables == nil {
		opts.Tables = tables.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	return &FileSink{
		log:  log.With().Str("component", "export").Logger(),
		opts: opts,
	}
}

// Export writes target's JSON document and rewrites the combined CBOR file
// from all.
func (s *FileSink) Export(ctx context.Context, target *model.Device, all []*model.Device) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.opts.Dir, 0o755); err != nil {
		return fmt.Errorf("export: create %s: %w", s.opts.Dir, err)
	}

	data, err := EncodeCBOR(all, s.opts.CBOR)
	if err != nil {
		return err
	}
	digest := Digest(data)
	cborPath := filepath.Join(s.opts.Dir, CBORFile)
	if err := writeFile(cborPath, data); err != nil {
		return err
	}
	if err := writeFile(cborPath+".sha256", []byte(digest+"  "+CBORFile+"\n")); err != nil {
		return err
	}

	now := s.opts.Now()
	doc := Document{
		ExportedAt: now.UTC(),
		Device:     target,
		Report: analysis.BuildReport(target, all, analysis.Options{
			Extended: s.opts.Extended,
			PinName:  s.opts.Tables.PinName,
		}),
		CBORSHA256: digest,
	}
	js, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("export: encode json: %w", err)
	}
	jsonPath := filepath.Join(s.opts.Dir, DocumentName(target.Family, now))
	if err := writeFile(jsonPath, append(js, '\n')); err != nil {
		return err
	}

	s.log.Info().
		Str("family", target.Family).
		Str("json", jsonPath).
		Str("cbor", cborPath).
		Str("sha256", digest).
		Msg("Export written")
	return nil
}

// DocumentName returns the JSON file name for a family exported at t.
func DocumentName(family string, t time.Time) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, family)
	if safe == "" {
		safe = "device"
	}
	return fmt.Sprintf("%s_%s.json", safe, t.UTC().Format("2006_01_02_15_04_05"))
}

// writeFile replaces path through a temporary file and rename.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("export: %w", err)
	}
	return nil
}
