package controller

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/tft-perf/traffic-flow-tests/model"
	"github.com/tft-perf/traffic-flow-tests/utils"
)

// ResultsPath returns where the results of the suite at position index go:
// "<outputBase><index>.json" when an output base was given on the command
// line, otherwise a timestamped file under the suite's logs directory.
func ResultsPath(logsDir, outputBase string, index int, now time.Time) string {
	if outputBase != "" {
		return fmt.Sprintf("%s%03d.json", outputBase, index)
	}
	return filepath.Join(logsDir, now.Format("20060102-150405")+".json")
}

// WriteResults persists one suite result as JSON and returns the path it
// was written to.
func WriteResults(result *model.SuiteResult, logsDir, outputBase string, index int) (string, error) {
	path := ResultsPath(logsDir, outputBase, index, time.Now())
	if outputBase == "" {
		utils.MakeFolder(logsDir)
	} else if dir := filepath.Dir(path); dir != "." {
		utils.MakeFolder(dir)
	}
	if err := utils.WriteJSONFile(path, result); err != nil {
		return "", err
	}
	return path, nil
}
