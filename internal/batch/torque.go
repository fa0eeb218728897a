package batch

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/raul-delacruz/fyrd/internal/config"
)

// torqueStates maps Torque/PBS single-letter states onto the canonical
// vocabulary. Unmapped states are a contract violation.
var torqueStates = map[string]State{
	"C": StateCompleted,
	"E": StateCompleting,
	"H": StateHeld,
	"Q": StatePending,
	"R": StateRunning,
	"T": StatePending, // job is being moved
	"W": StatePending, // waiting for its execution time
	"S": StateSuspended,
}

// TorqueServer implements the Server contract for Torque/PBS.
type TorqueServer struct {
	conf *config.Provider
	log  *zap.Logger
	run  Runner
}

// NewTorqueServer creates a Torque server.
func NewTorqueServer(d Deps) *TorqueServer {
	d = d.withDefaults()
	return &TorqueServer{conf: d.Conf, log: d.Log, run: d.Run}
}

// Name returns "torque".
func (t *TorqueServer) Name() string { return QTypeTorque }

// QueueTest checks that qsub and qstat are discoverable and executable.
func (t *TorqueServer) QueueTest(warn bool) bool {
	logf := t.log.Debug
	if warn {
		logf = t.log.Warn
	}

	qsub := t.conf.Tool("qsub")
	if filepath.Dir(qsub) != "." && !isExecutable(qsub) {
		logf("cannot use torque: configured qsub path is not an executable",
			zap.String("qsub", qsub))
		return false
	}
	path, err := exec.LookPath(qsub)
	if err != nil {
		logf("cannot use torque: cannot find qsub", zap.Error(err))
		return false
	}
	qstat := filepath.Join(filepath.Dir(path), "qstat")
	if !isExecutable(qstat) {
		logf("cannot use torque: qstat not found beside qsub",
			zap.String("qstat", qstat))
		return false
	}
	return true
}

// NormalizeJobID splits ids like "123[4].server" into base and array
// components, dropping the server suffix.
func (t *TorqueServer) NormalizeJobID(raw string) (string, string) {
	raw = strings.TrimSpace(raw)
	var arrayID string
	if open := strings.Index(raw, "["); open >= 0 {
		rest := raw[open+1:]
		if close := strings.Index(rest, "]"); close >= 0 {
			arrayID = rest[:close]
			raw = raw[:open] + rest[close+1:]
		}
	}
	if dot := strings.Index(raw, "."); dot >= 0 {
		raw = raw[:dot]
	}
	return strings.TrimSpace(raw), strings.TrimSpace(arrayID)
}

// NormalizeState maps a native Torque state letter onto the canonical
// vocabulary.
func (t *TorqueServer) NormalizeState(raw string) (State, error) {
	if st, ok := torqueStates[strings.ToUpper(strings.TrimSpace(raw))]; ok {
		return st, nil
	}
	// Some Torque builds report full words for exotic states.
	st := State(strings.ToLower(strings.TrimSpace(raw)))
	if st.Known() {
		return st, nil
	}
	return "", fmt.Errorf("%w: torque state %q", ErrUnknownState, raw)
}

// torqueQstatFields is the column count of `qstat -a -n -1` rows, without
// the trailing node list.
const torqueQstatFields = 11

// QueueParser parses `qstat -a -n -1`. Torque keeps finished jobs visible
// (state C) for its configured keep_completed window, so no separate
// accounting feed is merged here.
func (t *TorqueServer) QueueParser(filter QueueFilter) (*QueueIter, error) {
	code, stdout, stderr, err := t.run.Run(context.Background(), 1, t.conf.Tool("qstat"), "-a", "-n", "-1")
	if err != nil {
		return nil, fmt.Errorf("qstat failed: %w", err)
	}
	if code != 0 {
		return nil, &CommandError{Command: "qstat", Code: code, Stdout: stdout, Stderr: stderr}
	}

	var rows [][]string
	for _, line := range strings.Split(stdout, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || !strings.ContainsAny(trimmed[:1], "0123456789") {
			continue // header, separator, or server banner line
		}
		fields := strings.Fields(trimmed)
		if len(fields) != torqueQstatFields && len(fields) != torqueQstatFields+1 {
			return nil, NewParseError(QTypeTorque, "qstat",
				fmt.Sprintf("expected %d or %d fields, got %d",
					torqueQstatFields, torqueQstatFields+1, len(fields)), line)
		}
		rows = append(rows, fields)
	}

	return newRowIter(rows, func(row []string) (*JobRecord, error) {
		return t.sanitizeRow(row, filter)
	}), nil
}

func (t *TorqueServer) sanitizeRow(row []string, filter QueueFilter) (*JobRecord, error) {
	state, err := t.NormalizeState(row[9])
	if err != nil {
		return nil, err
	}

	jobID, arrayID := t.NormalizeJobID(row[0])
	rec := &JobRecord{
		JobID:     jobID,
		ArrayID:   arrayID,
		Name:      row[3],
		User:      resolveUser(row[1]),
		Partition: row[2],
		State:     state,
		NumNodes:  optInt(row[5]),
		NumCPUs:   optInt(row[6]),
	}
	if len(row) > torqueQstatFields {
		rec.NodeList = expandTorqueNodes(row[torqueQstatFields])
	}

	if filter.Partition != "" && rec.Partition != filter.Partition {
		return nil, nil
	}
	if filter.User != "" && rec.User != filter.User {
		return nil, nil
	}
	if filter.JobID != "" && rec.JobID != filter.JobID {
		return nil, nil
	}
	return rec, nil
}

// expandTorqueNodes flattens exec_host syntax like "node1/0+node1/1+node2/0"
// into node names, one per allocated slot.
func expandTorqueNodes(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "--" {
		return nil
	}
	parts := strings.Split(raw, "+")
	nodes := make([]string, 0, len(parts))
	for _, part := range parts {
		if slash := strings.Index(part, "/"); slash >= 0 {
			part = part[:slash]
		}
		if part != "" {
			nodes = append(nodes, part)
		}
	}
	return nodes
}

// Submit submits a script with qsub, encoding dependencies as
// -W depend=afterok:id:id.
func (t *TorqueServer) Submit(scriptPath string, dependencies []string) (SubmissionResult, error) {
	t.log.Debug("submitting to torque", zap.String("script", scriptPath))

	var args []string
	if len(dependencies) > 0 {
		args = append(args, "-W", "depend=afterok:"+strings.Join(dependencies, ":"))
	}
	args = append(args, scriptPath)

	code, stdout, stderr, err := t.run.Run(context.Background(), submitRetries, t.conf.Tool("qsub"), args...)
	if err != nil {
		return SubmissionResult{}, fmt.Errorf("qsub failed: %w", err)
	}
	if code != 0 {
		t.log.Error("qsub failed",
			zap.Int("code", code), zap.String("stdout", stdout), zap.String("stderr", stderr))
		return SubmissionResult{Error: true, Stdout: stdout, Stderr: stderr}, nil
	}

	// qsub prints the full job id (e.g. "123.server") on stdout.
	jobID, _ := t.NormalizeJobID(strings.TrimSpace(stdout))
	if jobID == "" {
		return SubmissionResult{Error: true, Stdout: stdout, Stderr: stderr}, nil
	}
	return SubmissionResult{JobID: jobID, Stdout: stdout, Stderr: stderr}, nil
}

// Kill cancels all given jobs with a single qdel invocation.
func (t *TorqueServer) Kill(jobIDs []string) bool {
	code, _, _, err := t.run.Run(context.Background(), submitRetries, t.conf.Tool("qdel"), jobIDs...)
	return err == nil && code == 0
}

// Metrics is not available on Torque: there is no accounting query tool in
// the standard client installation.
func (t *TorqueServer) Metrics(jobID string) ([][]string, error) {
	return nil, NewNotImplementedError(QTypeTorque, "Metrics")
}

// ParseStrangeOptions translates nodes/cores into a single
// "-l nodes=N:ppn=M" directive, since the generic formatter cannot express
// the combined form.
func (t *TorqueServer) ParseStrangeOptions(opts map[string]string) ([]string, map[string]string, []string) {
	nodes := "1"
	cores := "1"
	seen := false

	if n, ok := opts["nodes"]; ok {
		delete(opts, "nodes")
		nodes = n
		seen = true
	}
	if c, ok := opts["cores"]; ok {
		delete(opts, "cores")
		cores = c
		seen = true
	}

	var out []string
	if seen {
		out = append(out, fmt.Sprintf("#PBS -l nodes=%s:ppn=%s", nodes, cores))
	}
	return out, opts, nil
}

// GenScripts builds the qsub submission script.
func (t *TorqueServer) GenScripts(job *JobInfo, command string, args []string, precmd, modstr string) (*Script, *Script, error) {
	sub, err := renderRunnerScript(job, command, precmd, modstr)
	if err != nil {
		return nil, nil, err
	}
	return &Script{
		Name: fmt.Sprintf("%s.%s.qsub", job.Name, job.Suffix),
		Text: sub,
	}, nil, nil
}
