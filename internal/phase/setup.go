package phase

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Setup creates a fresh worktree and a new branch derived from the task
// slug plus timestamp, copies declared config files into it, and records
// the worktree path and branch into context. The
// orchestrator, not this phase, re-creates the executor against the new
// worktree and materializes the rules file afterward.
type Setup struct{ base }

func NewSetup() *Setup {
	return &Setup{base: base{name: "setup", timeoutSeconds: 60}}
}

func (s *Setup) Run(deps Deps) Result {
	ctx := context.Background()
	cfg := deps.Config

	branch := deps.Git.GenerateBranchName(deps.Context.TaskSlug, cfg.Git.BranchPrefix)
	base, err := deps.Git.DefaultBranch(ctx)
	if err != nil || base == "" {
		base = cfg.Git.BaseBranch
	}

	dir := filepath.Join(cfg.Git.WorktreeDir, branch)
	path, err := deps.Git.CreateWorktree(ctx, branch, dir, base)
	if err != nil {
		return failResult(fmt.Sprintf("create worktree: %v", err), Fatal)
	}

	for _, pattern := range cfg.CopyFiles {
		if err := copyGlob(deps.Context.RepoPath, path, pattern); err != nil {
			return failResult(fmt.Sprintf("copy declared file %q: %v", pattern, err), Fatal)
		}
	}

	deps.Context.WorktreePath = path
	deps.Context.BranchName = branch

	return successResult(0, "", map[string]any{
		"worktree_path": path,
		"branch_name":   branch,
	})
}

// copyGlob copies every file in srcDir matching pattern into dstDir,
// preserving the relative name. A pattern matching nothing is not an
// error: copy_files is a best-effort convenience list.
func copyGlob(srcDir, dstDir, pattern string) error {
	matches, err := filepath.Glob(filepath.Join(srcDir, pattern))
	if err != nil {
		return err
	}
	for _, m := range matches {
		rel, err := filepath.Rel(srcDir, m)
		if err != nil {
			return err
		}
		if err := copyFile(m, filepath.Join(dstDir, rel)); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil || info.IsDir() {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
