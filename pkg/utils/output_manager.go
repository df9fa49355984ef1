package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OutputManager lays out run outputs as <base>/<run id>/<file>
type OutputManager struct {
	BaseOutputDir string
}

func NewOutputManager(baseOutputDir string) *OutputManager {
	return &OutputManager{BaseOutputDir: baseOutputDir}
}

// RunDir returns the output directory of runID without creating it
func (om *OutputManager) RunDir(runID string) string {
	return filepath.Join(om.BaseOutputDir, filepath.Base(runID))
}

// GetOutputFilePath creates the run directory and returns the path of fileName
// inside it. Path separators in fileName are dropped.
func (om *OutputManager) GetOutputFilePath(runID, fileName string) (string, error) {
	runDir := om.RunDir(runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create run output directory: %w", err)
	}
	return filepath.Join(runDir, filepath.Base(fileName)), nil
}

// RemoveRunOutput deletes everything written for runID. A missing directory is not an error.
func (om *OutputManager) RemoveRunOutput(runID string) error {
	if runID == "" || filepath.Base(runID) != runID {
		return fmt.Errorf("invalid run id %q", runID)
	}
	return os.RemoveAll(om.RunDir(runID))
}

// GetFileType names the export type of fileName from its extension
func (om *OutputManager) GetFileType(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return "csv"
	case ".json":
		return "json"
	case ".xlsx", ".xls":
		return "excel"
	case ".db", ".sqlite":
		return "database"
	default:
		return "unknown"
	}
}
