package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"dubflow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkspaceDir = filepath.Join(base, "workspace")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Transcription.APIKey = "test"
	cfgVal.Synthesis.APIKey = "test"
	for brand, backend := range cfgVal.Translation.Backends {
		backend.APIKey = "test"
		cfgVal.Translation.Backends[brand] = backend
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithTranslationOrder overrides the translation backend fallback order.
func WithTranslationOrder(brands ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Translation.Order = brands
	}
}

// WithWeights replaces the validation weight table.
func WithWeights(version string, weights map[string]float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Validation.WeightsVersion = version
		b.cfg.Validation.Weights = weights
	}
}

// stubScript imitates the extraction binaries: it writes a small file to the
// path following -o, or to the last argument when no -o flag is present
// (ffmpeg style), so output verification in the caller passes.
const stubScript = `#!/bin/sh
out=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-o" ]; then out="$a"; fi
  prev="$a"
done
if [ -z "$out" ]; then
  for a in "$@"; do out="$a"; done
fi
printf 'stub-audio' > "$out"
`

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default external binaries
// are stubbed. Use StubFailure to make an individual stub fail.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "yt-dlp"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, []byte(stubScript), 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// StubFailure replaces a previously stubbed binary with one that exits
// non-zero without producing output.
func StubFailure(t testing.TB, cfg *config.Config, name string) {
	t.Helper()
	target := filepath.Join(BaseDir(cfg), "bin", name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\necho simulated failure >&2\nexit 1\n"), 0o755); err != nil {
		t.Fatalf("write failing stub %s: %v", name, err)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkspaceDir)
}
