// FILE: internal/probe/report.go
package probe

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Outcome classifies a recorded step.
type Outcome string

const (
	OutcomeOK              Outcome = "ok"
	OutcomeExpectedFailure Outcome = "expected-failure"
	OutcomeAnomaly         Outcome = "anomaly"
	OutcomeFailed          Outcome = "failed"
)

// StepResult 记录探针序列中一个步骤的结果
type StepResult struct {
	Name    string  `json:"name" yaml:"name"`
	Outcome Outcome `json:"outcome" yaml:"outcome"`
	Detail  string  `json:"detail,omitempty" yaml:"detail,omitempty"`
	Bytes   int     `json:"bytes,omitempty" yaml:"bytes,omitempty"`
	Calls   int     `json:"calls,omitempty" yaml:"calls,omitempty"`
	Errno   int     `json:"errno,omitempty" yaml:"errno,omitempty"`
	Error   string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report is the structured outcome of one probe run.
type Report struct {
	RunID         string       `json:"runId" yaml:"run_id"`
	Target        string       `json:"target" yaml:"target"`
	Local         string       `json:"local,omitempty" yaml:"local,omitempty"`
	Remote        string       `json:"remote,omitempty" yaml:"remote,omitempty"`
	StartedAt     time.Time    `json:"startedAt" yaml:"started_at"`
	Duration      string       `json:"duration" yaml:"duration"`
	Steps         []StepResult `json:"steps" yaml:"steps"`
	BytesSent     int          `json:"bytesSent" yaml:"bytes_sent"`
	BytesReceived int          `json:"bytesReceived" yaml:"bytes_received"`
	FinalState    string       `json:"finalState" yaml:"final_state"`
	Success       bool         `json:"success" yaml:"success"`
	Error         string       `json:"error,omitempty" yaml:"error,omitempty"`
}

// Step returns the first recorded step with the given name.
func (r *Report) Step(name string) (StepResult, bool) {
	for _, st := range r.Steps {
		if st.Name == name {
			return st, true
		}
	}
	return StepResult{}, false
}

// Render writes the report in the given format (text, json or yaml).
// The text form is a one-line summary, the per-step lines are printed while the probe runs.
func (r *Report) Render(w io.Writer, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		return enc.Close()
	case "text", "":
		status := "OK"
		if !r.Success {
			status = "FAILED: " + r.Error
		}
		_, err := fmt.Fprintf(w, "probe %s: %d steps, sent %d bytes, received %d bytes, %s\n",
			r.RunID, len(r.Steps), r.BytesSent, r.BytesReceived, status)
		return err
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}
