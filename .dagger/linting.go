package main

import (
	"context"
	"fmt"

	"dagger/switchboard/internal/dagger"
)

const golangciLintVersion = "v2.8.0"

// lintOpts returns the common GolangcilintOpts used by both CheckLint and FixLint.
// It layers golangci-lint on top of goContainer() so the sqlite dev headers,
// CGO, and Go caches are already in place.
func (s *Switchboard) lintOpts() dagger.GolangcilintOpts {
	base := s.goContainer().
		WithExec([]string{
			"go",
			"install",
			fmt.Sprintf("github.com/golangci/golangci-lint/v2/cmd/golangci-lint@%s", golangciLintVersion),
		})

	return dagger.GolangcilintOpts{
		BaseCtr: base,
	}
}

// CheckLint runs golangci-lint against the switchboard source code without applying fixes.
func (s *Switchboard) CheckLint(ctx context.Context) (string, error) {
	return dag.Golangcilint(s.Source, s.lintOpts()).Check(ctx)
}

// FixLint runs golangci-lint against the switchboard source code with --fix, applying
// automatic fixes where possible, and returns the modified source directory.
func (s *Switchboard) FixLint(ctx context.Context) *dagger.Directory {
	return dag.Golangcilint(s.Source, s.lintOpts()).Lint()
}
