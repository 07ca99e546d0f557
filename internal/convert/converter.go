package convert

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
)

// Converter is the external conversion collaborator. Given the resolved
// proprietary image file it writes DICOM files into outputDir and returns
// their paths. Format-specific failures are opaque to the pipeline.
type Converter interface {
	Convert(ctx context.Context, inputPath string, outputDir string) ([]string, error)
}

// ExecConverter shells out to a wsidicomizer-compatible command.
type ExecConverter struct {
	command string
}

func NewExecConverter(command string) *ExecConverter {
	return &ExecConverter{command: command}
}

func (c *ExecConverter) Convert(ctx context.Context, inputPath string, outputDir string) ([]string, error) {
	cmd := exec.CommandContext(ctx, c.command, "-i", inputPath, "-o", outputDir)
	out, err := cmd.CombinedOutput()
	if err != nil {
		zap.S().Named("convert").Errorw("converter command failed", "command", c.command, "output", string(out), "error", err)
		return nil, fmt.Errorf("%s failed: %w", c.command, err)
	}

	files, err := listFiles(outputDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s produced no output in %s", c.command, outputDir)
	}
	return files, nil
}

// listFiles returns the regular files directly under dir, sorted by name.
// The converted files are named by their SOPInstanceUIDs, so the order is
// stable across re-runs.
func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
