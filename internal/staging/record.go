package staging

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	StatusRunning     = "running"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
	StatusInterrupted = "interrupted"
)

// Record describes one build invocation for a spec identity.
type Record struct {
	ID       string    `json:"id"`
	Spec     string    `json:"spec"`
	Mode     string    `json:"mode"`
	Status   string    `json:"status"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished,omitempty"`
	Duration string    `json:"duration,omitempty"`
	CostUSD  float64   `json:"cost_usd"`
	Turns    int       `json:"turns"`
	Error    string    `json:"error,omitempty"`
}

// NewRecord starts a record for spec with a fresh build id.
func NewRecord(spec string) *Record {
	return &Record{
		ID:      uuid.NewString(),
		Spec:    spec,
		Status:  StatusRunning,
		Started: time.Now(),
	}
}

// Finish stamps the end time and final status. A non-nil err is kept as the
// record's error message.
func (r *Record) Finish(status string, err error) {
	r.Status = status
	r.Finished = time.Now()
	r.Duration = formatDuration(r.Finished.Sub(r.Started))
	if err != nil {
		r.Error = err.Error()
	}
}

// AddUsage accumulates agent cost and turn counts.
func (r *Record) AddUsage(costUSD float64, turns int) {
	r.CostUSD += costUSD
	r.Turns += turns
}

func (w *Workspace) recordPath() string {
	return filepath.Join(w.Dir(), "build.json")
}

// LoadRecord reads the latest build record. Returns nil, nil if none exists.
func (w *Workspace) LoadRecord() (*Record, error) {
	data, err := os.ReadFile(w.recordPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", w.recordPath(), err)
	}
	return &r, nil
}

// SaveRecord writes r as the latest build record.
func (w *Workspace) SaveRecord(r *Record) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return WriteFileAtomic(w.recordPath(), data, 0644)
}

func formatDuration(d time.Duration) string {
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %02ds", m, s)
}
