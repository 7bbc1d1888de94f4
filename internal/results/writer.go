// internal/results/writer.go
package results

import (
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/courier-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Artifact file names inside the data directory.
const (
	SentFile    = "sent_requests.json"
	FailedFile  = "failed_requests.json"
	SummaryFile = "run_summary.json"
)

// Writer lands batch outcomes as JSON artifacts. Outcomes stream in through
// Record and the sent/failed files are rewritten on every call, so a crashed
// run still leaves artifacts for everything that finished. Finish adds the
// run summary.
//
// Writer implements the coordinator's outcome sink. All writes are
// best-effort: failures are logged, never raised.
type Writer struct {
	dir    string
	logger *zap.Logger

	mu       sync.Mutex
	outcomes []schemas.Outcome
}

// NewWriter creates the data directory and returns a writer rooted there.
func NewWriter(dir string, logger *zap.Logger) (*Writer, error) {
	if dir == "" {
		return nil, schemas.NewConfigError("data", "data directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, schemas.NewConfigError("data", "creating data directory %q: %v", dir, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{dir: dir, logger: logger.Named("results")}, nil
}

// Dir returns the directory artifacts land in.
func (w *Writer) Dir() string { return w.dir }

// Record folds one finished outcome into the artifacts.
func (w *Writer) Record(outcome schemas.Outcome) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.outcomes = append(w.outcomes, outcome)
	w.writeSplits()
}

// Finish rewrites the artifacts one last time and adds the run summary.
func (w *Writer) Finish(summary schemas.RunSummary) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writeSplits()
	w.writeJSON(SummaryFile, summary)
	w.logger.Info("Run artifacts written.",
		zap.String("dir", w.dir),
		zap.Int("outcomes", len(w.outcomes)))
}

// writeSplits rewrites the sent and failed artifacts from the outcomes seen
// so far. Skips appear in the summary counts only, mirroring what the run
// log already tells the operator. Callers hold w.mu.
func (w *Writer) writeSplits() {
	sent := make([]schemas.Outcome, 0, len(w.outcomes))
	failed := make([]schemas.Outcome, 0)
	for _, o := range w.outcomes {
		switch o.Status {
		case schemas.StatusSent:
			sent = append(sent, o)
		case schemas.StatusFailed:
			failed = append(failed, o)
		}
	}
	w.writeJSON(SentFile, sent)
	w.writeJSON(FailedFile, failed)
}

// writeJSON lands v at name via a same-directory temp file and rename, so a
// reader never sees a half-written artifact.
func (w *Writer) writeJSON(name string, v any) {
	path := filepath.Join(w.dir, name)
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		w.logger.Error("Marshaling artifact failed.",
			zap.String("artifact", name), zap.Error(err))
		return
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(w.dir, name+".tmp-*")
	if err != nil {
		w.logger.Error("Creating artifact temp file failed.",
			zap.String("artifact", name), zap.Error(err))
		return
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		w.logger.Error("Writing artifact failed.",
			zap.String("artifact", name), zap.Error(err))
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		w.logger.Error("Closing artifact failed.",
			zap.String("artifact", name), zap.Error(err))
		return
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		w.logger.Error("Publishing artifact failed.",
			zap.String("artifact", name), zap.Error(err))
		return
	}
	w.logger.Debug("Artifact written.",
		zap.String("path", path), zap.Int("bytes", len(data)))
}
