// Package batch provides a uniform client/server abstraction over
// heterogeneous HPC batch systems (SLURM, Torque/PBS, LSF) and a local
// multiprocessing fallback. Backends wrap the schedulers' command-line
// tools and normalize their output into one canonical job-state stream.
package batch

import (
	"go.uber.org/zap"

	"github.com/raul-delacruz/fyrd/internal/config"
)

// Backend type names. "auto" is a pseudo-type resolved by detection.
const (
	QTypeSlurm  = "slurm"
	QTypeTorque = "torque"
	QTypeLSF    = "lsf"
	QTypeLocal  = "local"
	QTypeAuto   = "auto"
)

var definedSystems = map[string]bool{
	QTypeSlurm:  true,
	QTypeTorque: true,
	QTypeLSF:    true,
	QTypeLocal:  true,
	QTypeAuto:   true,
}

// DefinedSystem reports whether qtype names a known backend (or "auto").
func DefinedSystem(qtype string) bool { return definedSystems[qtype] }

// JobRecord is one normalized row of queue or accounting output. Optional
// numeric fields are nil when the scheduler did not report them.
type JobRecord struct {
	JobID     string
	ArrayID   string // empty unless this is an array sub-task
	Name      string
	User      string
	Partition string
	State     State
	NodeList  []string
	NumNodes  *int
	NumCPUs   *int
	ExitCode  *int
}

// QueueFilter restricts the rows returned by a queue parse. Zero values
// match everything.
type QueueFilter struct {
	User      string
	Partition string
	JobID     string
}

// SubmissionResult is the outcome of a submit call. Ordinary scheduler
// rejection is reported here, never as an error; errors are reserved for
// transport failure.
type SubmissionResult struct {
	Error  bool
	JobID  string
	Stdout string
	Stderr string
}

// Server is the operation set every backend must implement where the
// scheduler tools live. All methods block for the duration of any external
// command they run.
type Server interface {
	// Name returns the backend type tag (e.g. "slurm").
	Name() string

	// QueueTest verifies the backend's command-line tools are discoverable
	// and executable. Never returns an error; failures are logged at warn
	// level when warn is true, debug otherwise.
	QueueTest(warn bool) bool

	// NormalizeJobID splits a composite identifier into base and array
	// components. The array component is empty when no separator is present.
	NormalizeJobID(raw string) (jobID, arrayID string)

	// NormalizeState maps a native state string onto the canonical
	// vocabulary. Unmapped native states are a contract violation.
	NormalizeState(raw string) (State, error)

	// QueueParser merges the live queue and accounting history into one
	// deduplicated, filtered stream of job records. Each call re-queries
	// the scheduler.
	QueueParser(filter QueueFilter) (*QueueIter, error)

	// Submit submits a script with optional dependency job ids, retrying
	// the submit command up to the retry budget on failure.
	Submit(scriptPath string, dependencies []string) (SubmissionResult, error)

	// Kill requests cancellation of all given jobs. True means the cancel
	// command exited successfully, not that the jobs have stopped.
	Kill(jobIDs []string) bool

	// Metrics returns raw accounting metric rows, optionally scoped to one
	// job. Degrades to an empty result when the accounting tool fails.
	Metrics(jobID string) ([][]string, error)
}

// clientOps are the contract operations that always run on the client side:
// pure text transforms that never touch the scheduler tools.
type clientOps interface {
	// ParseStrangeOptions translates backend-specific keyword options the
	// generic option formatter cannot express into literal directive lines,
	// removing consumed keys from the map. The third result carries extra
	// submit-command arguments, if the backend needs any.
	ParseStrangeOptions(opts map[string]string) (directives []string, remaining map[string]string, extraArgs []string)

	// GenScripts builds the submission (and optional execution) script for
	// a job. Pure: no side effects beyond the returned script objects.
	GenScripts(job *JobInfo, command string, args []string, precmd, modstr string) (*Script, *Script, error)
}

// Deps carries the injectable collaborators every backend needs.
type Deps struct {
	Conf *config.Provider
	Log  *zap.Logger
	Run  Runner
}

func (d Deps) withDefaults() Deps {
	if d.Conf == nil {
		d.Conf = config.New()
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Run == nil {
		d.Run = NewExecRunner()
	}
	return d
}

// QueueIter walks reconciled queue rows one at a time. Both underlying
// queries have already completed by the time an iterator exists; stopping
// early only skips downstream sanitization.
type QueueIter struct {
	next func() (*JobRecord, error)
}

// Next returns the next surviving job record, or (nil, nil) when the
// snapshot is exhausted.
func (it *QueueIter) Next() (*JobRecord, error) {
	return it.next()
}

// Collect drains the iterator into a slice.
func (it *QueueIter) Collect() ([]JobRecord, error) {
	var out []JobRecord
	for {
		rec, err := it.Next()
		if err != nil {
			return out, err
		}
		if rec == nil {
			return out, nil
		}
		out = append(out, *rec)
	}
}

// newSliceIter wraps already-sanitized records (used by the RPC proxy).
func newSliceIter(recs []JobRecord) *QueueIter {
	i := 0
	return &QueueIter{next: func() (*JobRecord, error) {
		if i >= len(recs) {
			return nil, nil
		}
		rec := recs[i]
		i++
		return &rec, nil
	}}
}

// newRowIter lazily sanitizes raw rows. sanitize returns (nil, nil) for rows
// dropped by a filter.
func newRowIter(rows [][]string, sanitize func([]string) (*JobRecord, error)) *QueueIter {
	i := 0
	return &QueueIter{next: func() (*JobRecord, error) {
		for i < len(rows) {
			row := rows[i]
			i++
			rec, err := sanitize(row)
			if err != nil {
				return nil, err
			}
			if rec != nil {
				return rec, nil
			}
		}
		return nil, nil
	}}
}
