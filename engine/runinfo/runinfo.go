// Package runinfo writes the YAML sidecar that accompanies every
// persisted artifact, per spec.md §4.6: task identity, parameters
// used, input fingerprints, timing, and the invoking user, plus any
// notes added through Builder.AppendNote. engine/chain creates the
// Builder after a task's Run returns, so a running task has no way to
// add notes of its own.
package runinfo

import (
	"os/user"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/flowerchecker/taskchain/engine/core"
)

// Record is one run-info sidecar document.
type Record struct {
	ID              string            `yaml:"id"`
	TaskClass       string            `yaml:"task_class"`
	FullName        string            `yaml:"full_name"`
	ConfigName      string            `yaml:"config_name"`
	Namespace       string            `yaml:"namespace,omitempty"`
	Parameters      map[string]string `yaml:"parameters,omitempty"`
	InputFingerprints map[string]string `yaml:"input_fingerprints,omitempty"`
	StartedAt       time.Time         `yaml:"started_at"`
	FinishedAt      time.Time         `yaml:"finished_at"`
	ElapsedSeconds  float64           `yaml:"elapsed_seconds"`
	InvokingUser    string            `yaml:"invoking_user"`
	Notes           []string          `yaml:"notes,omitempty"`
}

// Builder accumulates a Record across one task run, including any
// notes added with AppendNote, before Write flushes it to disk.
type Builder struct {
	record Record
	start  time.Time
}

// NewBuilder starts a run-info record for one task execution. now is a
// seam for deterministic testing; production code only ever calls
// time.Now().
func NewBuilder(now time.Time, taskClass, fullName, configName, namespace string) *Builder {
	return &Builder{
		start: now,
		record: Record{
			ID:           ksuid.New().String(),
			TaskClass:    taskClass,
			FullName:     fullName,
			ConfigName:   configName,
			Namespace:    namespace,
			InvokingUser: currentUser(),
			StartedAt:    now,
		},
	}
}

// SetParameters records the parameter values used for this run, keyed
// by parameter name, as their stable string representation.
func (b *Builder) SetParameters(params map[string]string) {
	b.record.Parameters = params
}

// SetInputFingerprints records each input task's fingerprint, keyed by
// the name the task referred to it by.
func (b *Builder) SetInputFingerprints(fingerprints map[string]string) {
	b.record.InputFingerprints = fingerprints
}

// AppendNote adds a user-appended record to the sidecar, per spec.md
// §4.6's "any user-appended records".
func (b *Builder) AppendNote(note string) {
	b.record.Notes = append(b.record.Notes, note)
}

// Finish closes out the record at finishedAt and returns it.
func (b *Builder) Finish(finishedAt time.Time) Record {
	b.record.FinishedAt = finishedAt
	b.record.ElapsedSeconds = finishedAt.Sub(b.start).Seconds()
	return b.record
}

// Write encodes record as YAML and writes it to path on fs.
func Write(fs afero.Fs, path string, record Record) error {
	data, err := yaml.Marshal(record)
	if err != nil {
		return core.PersistenceError("RUNINFO_ENCODE_FAILED", "could not encode run-info sidecar", err, nil)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return core.PersistenceError("RUNINFO_WRITE_FAILED", "could not write run-info sidecar", err, map[string]any{"path": path})
	}
	return nil
}

func currentUser() string {
	u, err := user.Current()
	if err != nil {
		return ""
	}
	return u.Username
}
