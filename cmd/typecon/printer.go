package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/funvibe/typecon/internal/config"
	"github.com/funvibe/typecon/internal/diagnostics"
)

const (
	ansiReset = "\x1b[0m"
	ansiBold  = "\x1b[1m"
	ansiRed   = "\x1b[31m"
)

type printer struct {
	w     io.Writer
	color bool
}

// newPrinter colors output only on a terminal and never in test mode.
func newPrinter(f *os.File, wantColor bool) *printer {
	isTTY := isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	return &printer{w: f, color: wantColor && isTTY && !config.IsTestMode}
}

func (p *printer) diagnostic(e *diagnostics.DiagnosticError) {
	if !p.color {
		fmt.Fprintln(p.w, e.Error())
		return
	}
	if loc := e.Location.String(); loc != "" {
		fmt.Fprintf(p.w, "%s%s:%s ", ansiBold, loc, ansiReset)
	}
	fmt.Fprintf(p.w, "%serror %s%s: %s\n", ansiRed, e.Code, ansiReset, e.Message())
}

func (p *printer) summary(n int) {
	noun := "errors"
	if n == 1 {
		noun = "error"
	}
	fmt.Fprintf(p.w, "%d %s\n", n, noun)
}
