package workflow

import (
	"encoding/json"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// appendResult writes the envelope as one JSON line to the results
// log. The log is an audit trail, not a store of record, so append
// failures are logged and swallowed.
func (o *Orchestrator) appendResult(envelope ResultEnvelope, logger *zap.Logger) {
	if o.config.ResultsLog == "" {
		return
	}

	line, err := json.Marshal(envelope)
	if err != nil {
		logger.Warn("failed to marshal result envelope for the results log", zap.Error(err))
		return
	}

	if dir := filepath.Dir(o.config.ResultsLog); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Warn("failed to create results log directory", zap.Error(err))
			return
		}
	}

	f, err := os.OpenFile(o.config.ResultsLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logger.Warn("failed to open results log", zap.Error(err))
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		logger.Warn("failed to append to results log", zap.Error(err))
	}
}
