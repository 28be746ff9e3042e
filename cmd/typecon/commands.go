package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/funvibe/typecon/internal/analyzer"
	"github.com/funvibe/typecon/internal/image"
	"github.com/funvibe/typecon/internal/metadata"
	"github.com/funvibe/typecon/internal/pipeline"
	"github.com/funvibe/typecon/internal/store"
)

type CheckCmd struct {
	File string `arg:"" help:"Universe document." type:"existingfile"`
}

func (c *CheckCmd) Run(g *Globals) error {
	pctx, err := analyze(g, c.File, false)
	if err != nil {
		return err
	}
	return report(g, pctx)
}

type EmitCmd struct {
	File string `arg:"" help:"Universe document." type:"existingfile"`
	Out  string `help:"Output image path." short:"o" required:""`
}

func (c *EmitCmd) Run(g *Globals) error {
	pctx, err := analyze(g, c.File, true)
	if err != nil {
		return err
	}
	if err := report(g, pctx); err != nil {
		return err
	}
	if err := image.WriteFile(c.Out, pctx.Output); err != nil {
		return err
	}
	pctx.Logger.Info("wrote image", "path", c.Out, "params", len(pctx.Output.Params))
	return nil
}

type DumpCmd struct {
	Image string `arg:"" help:"Metadata image written by emit." type:"existingfile"`
	Blobs bool   `help:"Print the signature blob of each parameter."`
}

func (c *DumpCmd) Run(g *Globals) error {
	img, err := image.ReadFile(c.Image)
	if err != nil {
		return err
	}
	dump(os.Stdout, img, c.Blobs)
	return nil
}

type StoreCmd struct {
	File string `arg:"" help:"Universe document." type:"existingfile"`
	DB   string `help:"SQLite database path." name:"db" required:""`
}

func (c *StoreCmd) Run(g *Globals) error {
	pctx, err := analyze(g, c.File, true)
	if err != nil {
		return err
	}
	if err := report(g, pctx); err != nil {
		return err
	}

	ctx := context.Background()
	st, err := store.Open(ctx, c.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	images := []*image.Image{pctx.Output}
	names := make([]string, 0, len(pctx.Images))
	for name := range pctx.Images {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		images = append(images, pctx.Images[name])
	}

	now := time.Now()
	for _, img := range images {
		if err := metadata.CopyAll(st, img); err != nil {
			return fmt.Errorf("storing %s: %w", img.Assembly, err)
		}
		if err := st.RecordSession(ctx, pctx.Session, img.Assembly, now); err != nil {
			return err
		}
	}
	fmt.Printf("stored %d assemblies in %s (session %s)\n", len(images), c.DB, pctx.Session)
	return nil
}

// analyze runs the analysis pipeline over one universe document.
func analyze(g *Globals, path string, emit bool) (*pipeline.PipelineContext, error) {
	pctx := pipeline.NewPipelineContext(path)
	pctx.Logger = g.logger()

	stages := analyzer.Stages()
	if emit {
		stages = analyzer.StagesWithEmit()
	}
	for _, st := range stages {
		if cp, ok := st.(*analyzer.CheckProcessor); ok {
			cp.Limit = g.Jobs
		}
	}

	out := pipeline.New(stages...).Run(pctx)
	if out.Err != nil {
		return out, out.Err
	}
	return out, nil
}

// report prints the diagnostics and returns errDiagnostics if there were any.
func report(g *Globals, pctx *pipeline.PipelineContext) error {
	errs := pctx.Errors()
	if len(errs) == 0 {
		return nil
	}
	p := newPrinter(os.Stderr, !g.NoColor)
	for _, e := range errs {
		p.diagnostic(e)
	}
	p.summary(len(errs))
	return errDiagnostics
}

func dump(w io.Writer, img *image.Image, blobs bool) {
	fmt.Fprintf(w, "image %s assembly %s", img.ID, img.Assembly)
	if img.Corlib {
		fmt.Fprint(w, " corlib")
	}
	fmt.Fprintln(w)
	if len(img.References) > 0 {
		fmt.Fprintf(w, "references %s\n", strings.Join(img.References, ", "))
	}
	for _, t := range img.Types {
		fmt.Fprintf(w, "%s %s", t.Kind, t.FullName())
		if len(t.TypeParams) > 0 {
			fmt.Fprintf(w, "<%s>", strings.Join(t.TypeParams, ", "))
		}
		fmt.Fprintln(w)
		if t.Base != nil {
			fmt.Fprintf(w, "  base %s\n", t.Base)
		}
		for _, iface := range t.Interfaces {
			fmt.Fprintf(w, "  implements %s\n", iface)
		}
		for _, f := range t.Fields {
			static := ""
			if f.Static {
				static = "static "
			}
			fmt.Fprintf(w, "  field %s%s %s\n", static, f.Name, f.Type)
		}
	}
	for _, m := range img.Members {
		fmt.Fprintf(w, "%s %s<%s>", m.Kind, m.QualifiedName(), strings.Join(m.TypeParams, ", "))
		switch {
		case m.Overrides != "":
			fmt.Fprintf(w, " overrides %s", m.Overrides)
		case m.Implements != "":
			fmt.Fprintf(w, " implements %s", m.Implements)
		}
		fmt.Fprintln(w)
	}
	for _, p := range img.Params {
		fmt.Fprintf(w, "param %s %s (%s)\n", metadata.ParamKey(p.Owner, p.Ordinal), p.Name, p.Flags)
		for _, c := range p.Constraints {
			fmt.Fprint(w, "  constraint")
			for _, m := range c.Modifiers {
				fmt.Fprintf(w, " %s", m)
			}
			fmt.Fprintf(w, " %s\n", c.Type)
		}
		for _, a := range p.Attributes {
			fmt.Fprintf(w, "  attribute %s\n", a)
		}
		if blobs {
			enc := metadata.EncodedConstraint{Flags: p.Flags, Constraints: p.Constraints}
			if len(p.Attributes) > 0 {
				enc.Marker = &metadata.MarkerAttribute{Type: p.Attributes[0]}
			}
			fmt.Fprintf(w, "  blob % x\n", enc.Bytes())
		}
	}
}
