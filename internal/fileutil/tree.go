package fileutil

import (
	"fmt"
	"os"
	"path/filepath"

	"webforge/internal/security"
)

// TreeFile is one file of a tree written by WriteTree.
type TreeFile struct {
	Path string // slash-separated, relative to the root
	Data []byte
}

type treeOp struct {
	target  string
	staged  string
	backup  string
	applied bool
}

// WriteTree writes every file under root as one unit: files are staged and
// existing targets backed up first, and any failure while applying restores
// the previous state. Paths that would leave root are rejected up front.
func WriteTree(root string, files []TreeFile) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", root, err)
	}
	stage, err := os.MkdirTemp("", "webforge-write-")
	if err != nil {
		return fmt.Errorf("failed to create staging dir: %w", err)
	}
	defer os.RemoveAll(stage)

	ops := make([]*treeOp, 0, len(files))
	for i, f := range files {
		target, err := security.JoinPathSafe(root, f.Path)
		if err != nil {
			return err
		}
		staged := filepath.Join(stage, fmt.Sprintf("op-%d", i))
		if err := os.WriteFile(staged, f.Data, 0o644); err != nil {
			return fmt.Errorf("failed to stage %s: %w", f.Path, err)
		}
		op := &treeOp{target: target, staged: staged}
		if _, err := os.Stat(target); err == nil {
			op.backup = filepath.Join(stage, fmt.Sprintf("backup-%d", i))
			if err := copyFile(target, op.backup); err != nil {
				return fmt.Errorf("failed to back up %s: %w", f.Path, err)
			}
		}
		ops = append(ops, op)
	}

	for _, op := range ops {
		if err := applyWrite(op); err != nil {
			rollback(ops)
			return err
		}
		op.applied = true
	}
	return nil
}

func applyWrite(op *treeOp) error {
	if err := os.MkdirAll(filepath.Dir(op.target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", op.target, err)
	}
	if err := os.Rename(op.staged, op.target); err == nil {
		return os.Chmod(op.target, 0o644)
	}
	// Cross-device staging dir.
	if err := copyFile(op.staged, op.target); err != nil {
		return fmt.Errorf("failed to write %s: %w", op.target, err)
	}
	return nil
}

func rollback(ops []*treeOp) {
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		if !op.applied {
			continue
		}
		if op.backup != "" {
			_ = copyFile(op.backup, op.target)
		} else {
			_ = os.Remove(op.target)
		}
	}
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
