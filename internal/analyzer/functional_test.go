package analyzer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/funvibe/typecon/internal/config"
	"github.com/funvibe/typecon/internal/pipeline"
)

// TestFunctional runs every testdata/*.yaml universe through the analysis
// stages and compares the rendered diagnostics with the .want file next to it.
func TestFunctional(t *testing.T) {
	config.IsTestMode = true

	files, err := filepath.Glob(filepath.Join("testdata", "*.yaml"))
	if err != nil {
		t.Fatalf("Failed to list testdata: %v", err)
	}
	if len(files) == 0 {
		t.Skip("No universes found in testdata")
	}

	for _, path := range files {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		wantFile := strings.TrimSuffix(path, ".yaml") + ".want"
		t.Run(name, func(t *testing.T) {
			wantBytes, err := os.ReadFile(wantFile)
			if err != nil {
				t.Fatalf("Failed to read %s: %v", wantFile, err)
			}

			ctx := pipeline.New(Stages()...).Run(pipeline.NewPipelineContext(path))
			if ctx.Err != nil {
				t.Fatalf("pipeline failed: %v", ctx.Err)
			}

			var lines []string
			for _, e := range ctx.Errors() {
				lines = append(lines, e.Error())
			}
			got := strings.Join(lines, "\n")
			want := strings.TrimSpace(string(wantBytes))

			if got != want {
				t.Errorf("diagnostics mismatch\n--- got ---\n%s\n--- want ---\n%s", got, want)
			}
		})
	}
}
