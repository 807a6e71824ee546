package backend

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/specialistvlad/benchgrid/internal/ctxlog"
	"github.com/specialistvlad/benchgrid/internal/shell"
)

// PrepareScript is the bash script that configures, builds and installs the
// preload library from the build directory.
func PrepareScript(p *Profile) string {
	steps := []string{}
	if p.Library.Pre != "" {
		steps = append(steps, p.Library.Pre)
	}
	cmake := "cmake .."
	if p.Library.BuildFlags != "" {
		cmake += " " + p.Library.BuildFlags
	}
	steps = append(steps,
		"cd "+p.BuildDir(),
		cmake,
		"make clean",
		"make",
		"make install DESTDIR="+p.InstallDir(),
	)
	return strings.Join(steps, " && ") + "\n"
}

// Prepare builds and installs the preload library for the profile's
// backend and library. Any failure is returned.
func Prepare(ctx context.Context, p *Profile, env shell.Env) error {
	logger := ctxlog.FromContext(ctx).With("suffix", p.Suffix())

	if err := os.MkdirAll(p.BuildDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create build directory: %w", err)
	}
	script := PrepareScript(p)
	logger.Info("Preparing preload library.", "build_dir", p.BuildDir(), "install_dir", p.InstallDir())

	res, err := shell.Run(ctx, shell.Command{Shell: "/bin/bash", Stdin: true, Script: script, Dir: p.SourceDir, Env: env})
	if err != nil {
		return fmt.Errorf("failed to prepare library: %w", err)
	}
	logger.Debug("Prepare output.", "output", string(res.Output))
	if res.Failed() {
		logger.Error("Prepare failed.", "exit_code", res.ExitCode, "output", string(res.Output))
		return fmt.Errorf("failed to prepare library: build exited with status %d", res.ExitCode)
	}
	logger.Info("Preload library installed.", "path", p.PreloadPath())
	return nil
}
