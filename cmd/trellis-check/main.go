// Command trellis-check compiles a binding manifest and reports every
// unsatisfied dependency and cycle, or the compiled bindings per scope.
//
//	trellis-check --manifest app.yaml --format yaml
package main

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/xraph/trellis"
	"github.com/xraph/trellis/internal/manifest"
)

const (
	exitOK      = 0
	exitInvalid = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := loadConfig(args)
	if err != nil {
		fmt.Fprintf(stderr, "trellis-check: %v\n", err)

		return exitUsage
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "trellis-check: %v\n", err)

		return exitUsage
	}
	defer func() { _ = logger.Sync() }()

	m, err := manifest.Load(cfg.Manifest)
	if err != nil {
		logger.Error("manifest rejected", zap.Error(err))
		fmt.Fprintf(stderr, "%v\n", err)

		return exitUsage
	}

	logger.Info("manifest loaded",
		zap.String("path", m.Path),
		zap.Int("bindings", len(m.Bindings)),
		zap.Int("generators", len(m.Generators)),
	)

	inj, err := trellis.CompileWith([]trellis.Option{
		trellis.WithLogger(logger),
		trellis.WithThreadsafe(cfg.Threadsafe),
	}, m.Module())
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)

		return exitInvalid
	}

	if cfg.Instantiate {
		if err := instantiate(inj); err != nil {
			fmt.Fprintf(stderr, "%v\n", err)

			return exitInvalid
		}
	}

	report := manifest.NewReport(m.Name, inj)

	if cfg.Format == "yaml" {
		err = report.WriteYAML(stdout)
	} else {
		err = report.WriteText(stdout)
	}

	if err != nil {
		logger.Error("writing report", zap.Error(err))

		return exitUsage
	}

	return exitOK
}

// instantiate resolves every root binding, which also exercises the
// generated bindings they depend on.
func instantiate(inj *trellis.Injector) error {
	for _, key := range inj.Bindings() {
		if _, err := inj.GetInstance(key); err != nil {
			return err
		}
	}

	return nil
}
