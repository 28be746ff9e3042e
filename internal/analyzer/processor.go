package analyzer

import (
	"errors"
	"io/fs"

	"github.com/funvibe/typecon/internal/checker"
	"github.com/funvibe/typecon/internal/diagnostics"
	"github.com/funvibe/typecon/internal/image"
	"github.com/funvibe/typecon/internal/pipeline"
	"github.com/funvibe/typecon/internal/symbols"
	"github.com/funvibe/typecon/internal/universe"
)

// state is shared by the stages of one pipeline.
type state struct {
	analyzer *Analyzer
}

// Stages returns the analysis stages in order: load, declare, validate,
// propagate, check. Emit is added separately by commands that write images.
func Stages() []pipeline.Processor {
	st := &state{}
	return []pipeline.Processor{
		&LoadProcessor{},
		&DeclareProcessor{state: st},
		&ValidateProcessor{state: st},
		&PropagateProcessor{state: st},
		&CheckProcessor{state: st},
	}
}

// StagesWithEmit is Stages followed by EmitProcessor.
func StagesWithEmit() []pipeline.Processor {
	stages := Stages()
	st := stages[1].(*DeclareProcessor).state
	return append(stages, &EmitProcessor{state: st})
}

// LoadProcessor reads the universe document and the images it references.
type LoadProcessor struct{}

func (lp *LoadProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.Failed() {
		return ctx
	}
	if ctx.Universe == nil {
		u, err := universe.Load(ctx.FilePath)
		if err != nil {
			ctx.Err = err
			return ctx
		}
		ctx.Universe = u
	}

	u := ctx.Universe
	for _, a := range u.Assemblies {
		if a.Image == "" || ctx.Images[a.Name] != nil {
			continue
		}
		path := u.ImagePath(a)
		img, err := image.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				ctx.Diagnostics.Report(diagnostics.NewError(diagnostics.ErrR003, diagnostics.Location{File: u.Path}, a.Name))
				ctx.Images[a.Name] = image.New(a.Name)
				continue
			}
			ctx.Err = err
			return ctx
		}
		ctx.Images[a.Name] = img
		ctx.Logger.Debug("loaded image", "assembly", a.Name, "path", path, "id", img.ID)
	}
	return ctx
}

// DeclareProcessor builds the symbol table and imports referenced metadata.
type DeclareProcessor struct {
	state *state
}

func (dp *DeclareProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.Failed() || ctx.Universe == nil {
		return ctx
	}
	if ctx.Table == nil {
		ctx.Table = symbols.NewEmptySymbolTable()
	}
	an := New(ctx.Table, ctx.Diagnostics, ctx.Logger.With("session", ctx.Session.String()))
	if err := an.Declare(ctx.Universe, ctx.Images); err != nil {
		ctx.Err = err
		return ctx
	}
	dp.state.analyzer = an
	ctx.Importer = an.Importer()
	for name, img := range an.Images() {
		ctx.Images[name] = img
	}
	return ctx
}

// ValidateProcessor reports declaration-site errors.
type ValidateProcessor struct {
	state *state
}

func (vp *ValidateProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.Failed() || vp.state.analyzer == nil {
		return ctx
	}
	vp.state.analyzer.Validate()
	return ctx
}

// PropagateProcessor copies constraints onto overrides and closures.
type PropagateProcessor struct {
	state *state
}

func (pp *PropagateProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.Failed() || pp.state.analyzer == nil {
		return ctx
	}
	pp.state.analyzer.Propagate()
	return ctx
}

// CheckProcessor binds the use sites and checks them in parallel.
type CheckProcessor struct {
	state *state

	// Limit bounds the number of concurrent checks; 0 means GOMAXPROCS.
	Limit int
}

func (cp *CheckProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.Failed() || cp.state.analyzer == nil {
		return ctx
	}
	ctx.Sites = cp.state.analyzer.Sites(ctx.Universe.Compilation)
	failed, err := checker.CheckSites(ctx.Context, ctx.Sites, ctx.Diagnostics, cp.Limit)
	if err != nil {
		ctx.Err = err
		return ctx
	}
	ctx.FailedSites = failed
	ctx.Logger.Debug("checked sites", "sites", len(ctx.Sites), "failed", failed)
	return ctx
}

// EmitProcessor writes the compilation's metadata into ctx.Output.
type EmitProcessor struct {
	state *state
}

func (ep *EmitProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.Failed() || ep.state.analyzer == nil {
		return ctx
	}
	img, err := ep.state.analyzer.Emit()
	if err != nil {
		// The declaration errors behind this were already reported.
		ctx.Logger.Warn("emitting incomplete image", "err", err)
	}
	ctx.Output = img
	return ctx
}
