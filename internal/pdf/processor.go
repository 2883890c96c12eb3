// Package pdf runs the merge and compress tools on uploaded documents.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const (
	LevelLow      = "low"
	LevelBalanced = "balanced"
	LevelHigh     = "high"
)

var (
	ErrEncrypted    = errors.New("pdf: document is password protected")
	ErrInvalidPDF   = errors.New("pdf: document could not be read")
	ErrTooFewInputs = errors.New("pdf: merge needs at least two documents")
	ErrUnknownLevel = errors.New("pdf: unknown compression level")
)

func init() {
	// Keep pdfcpu from creating a config directory under $HOME.
	api.DisableConfigDir()
}

// Input is one uploaded document.
type Input struct {
	Name string
	Data io.ReadSeeker
}

type Processor interface {
	Merge(ctx context.Context, inputs []Input, w io.Writer) error
	Compress(ctx context.Context, input Input, level string, w io.Writer) error
}

// Pdfcpu is the Processor backed by github.com/pdfcpu/pdfcpu.
type Pdfcpu struct{}

func NewProcessor() *Pdfcpu {
	return &Pdfcpu{}
}

func (p *Pdfcpu) Merge(ctx context.Context, inputs []Input, w io.Writer) error {
	if len(inputs) < 2 {
		return ErrTooFewInputs
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	readers := make([]io.ReadSeeker, 0, len(inputs))
	for _, in := range inputs {
		if err := validate(in); err != nil {
			return err
		}
		readers = append(readers, in.Data)
	}

	if err := api.MergeRaw(readers, w, false, newConfiguration()); err != nil {
		return classify(err)
	}
	return nil
}

func (p *Pdfcpu) Compress(ctx context.Context, input Input, level string, w io.Writer) error {
	conf, err := compressConfiguration(level)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(input); err != nil {
		return err
	}

	if err := api.Optimize(input.Data, w, conf); err != nil {
		return classify(err)
	}
	return nil
}

// NormalizeLevel maps an empty level to balanced and rejects unknown ones.
func NormalizeLevel(level string) (string, error) {
	switch l := strings.ToLower(strings.TrimSpace(level)); l {
	case "":
		return LevelBalanced, nil
	case LevelLow, LevelBalanced, LevelHigh:
		return l, nil
	default:
		return "", ErrUnknownLevel
	}
}

func compressConfiguration(level string) (*model.Configuration, error) {
	l, err := NormalizeLevel(level)
	if err != nil {
		return nil, err
	}
	conf := newConfiguration()
	switch l {
	case LevelLow:
		conf.OptimizeDuplicateContentStreams = false
		conf.OptimizeResourceDicts = false
	case LevelBalanced:
		conf.OptimizeResourceDicts = true
	case LevelHigh:
		conf.OptimizeResourceDicts = true
		conf.OptimizeDuplicateContentStreams = true
	}
	return conf, nil
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// validate reads the document once so encrypted and broken uploads are
// reported before any output is written.
func validate(in Input) error {
	if _, err := in.Data.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPDF, in.Name)
	}
	if _, err := api.ReadContext(in.Data, newConfiguration()); err != nil {
		if errors.Is(classify(err), ErrEncrypted) {
			return ErrEncrypted
		}
		return fmt.Errorf("%w: %s", ErrInvalidPDF, in.Name)
	}
	if _, err := in.Data.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPDF, in.Name)
	}
	return nil
}

func classify(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "password") || strings.Contains(msg, "encrypt") {
		return ErrEncrypted
	}
	return fmt.Errorf("%w: %v", ErrInvalidPDF, err)
}
