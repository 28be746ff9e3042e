package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/funvibe/typecon/internal/checker"
	"github.com/funvibe/typecon/internal/config"
	"github.com/funvibe/typecon/internal/diagnostics"
	"github.com/funvibe/typecon/internal/image"
	"github.com/funvibe/typecon/internal/metadata"
	"github.com/funvibe/typecon/internal/symbols"
	"github.com/funvibe/typecon/internal/universe"
)

// Processor is one stage of the pipeline.
type Processor interface {
	Process(ctx *PipelineContext) *PipelineContext
}

// PipelineContext carries the state shared between stages.
type PipelineContext struct {
	Context  context.Context
	FilePath string
	Logger   *slog.Logger

	// Session identifies one run; it is recorded with stored metadata.
	Session uuid.UUID

	Universe *universe.Universe
	Table    *symbols.SymbolTable
	Importer *metadata.Importer

	// Images holds the metadata of every referenced assembly, by name, and
	// Output the metadata emitted for the compilation.
	Images map[string]*image.Image
	Output *image.Image

	Sites       []checker.Site
	FailedSites int

	Diagnostics *diagnostics.Bag

	// Err is a failure that stops later stages (unreadable input).
	Err error
}

// NewPipelineContext creates a context for the universe document at filePath.
// In test mode the session id is derived from the path.
func NewPipelineContext(filePath string) *PipelineContext {
	session := uuid.New()
	if config.IsTestMode {
		session = uuid.NewSHA1(uuid.NameSpaceURL, []byte(filePath))
	}
	return &PipelineContext{
		Context:     context.Background(),
		FilePath:    filePath,
		Logger:      slog.New(slog.DiscardHandler),
		Session:     session,
		Images:      make(map[string]*image.Image),
		Diagnostics: diagnostics.NewBag(),
	}
}

// Errors returns the collected diagnostics in report order.
func (ctx *PipelineContext) Errors() []*diagnostics.DiagnosticError {
	return ctx.Diagnostics.Errors()
}

// Failed reports whether a stage failed outright.
func (ctx *PipelineContext) Failed() bool {
	return ctx.Err != nil
}
