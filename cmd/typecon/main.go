package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/funvibe/typecon/internal/config"
)

// errDiagnostics signals that diagnostics were printed; the exit code is 1
// without a further message.
var errDiagnostics = errors.New("diagnostics reported")

type Globals struct {
	Verbose bool `help:"Log analysis stages to stderr." short:"v"`
	NoColor bool `help:"Disable colored diagnostics." name:"no-color"`
	Jobs    int  `help:"Maximum concurrent use-site checks (0 means GOMAXPROCS)." default:"0" short:"j"`
}

type CLI struct {
	Globals

	Check   CheckCmd   `cmd:"" help:"Check a universe and report diagnostics."`
	Emit    EmitCmd    `cmd:"" help:"Check a universe and write the compilation's metadata image."`
	Dump    DumpCmd    `cmd:"" help:"Print the contents of a metadata image."`
	Store   StoreCmd   `cmd:"" help:"Check a universe and record its generic parameter rows in SQLite."`
	Version VersionCmd `cmd:"" help:"Print version information."`
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(Version())
	return nil
}

// logger builds the stage logger: debug level with --verbose, warnings
// otherwise.
func (g *Globals) logger() *slog.Logger {
	level := slog.LevelWarn
	if g.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func main() {
	// TYPECON_TEST_MODE makes output reproducible for functional tests.
	if os.Getenv("TYPECON_TEST_MODE") == "1" {
		config.IsTestMode = true
	}

	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("typecon"),
		kong.Description("Unmanaged generic constraint verifier and metadata codec."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli.Globals)
	if errors.Is(err, errDiagnostics) {
		os.Exit(1)
	}
	ctx.FatalIfErrorf(err)
}
