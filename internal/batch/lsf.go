package batch

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/raul-delacruz/fyrd/internal/config"
)

// lsfStates maps native LSF states onto the canonical vocabulary.
var lsfStates = map[string]State{
	"PEND":  StatePending,
	"PROV":  StatePending,
	"WAIT":  StatePending,
	"RUN":   StateRunning,
	"DONE":  StateCompleted,
	"EXIT":  StateFailed,
	"PSUSP": StateSuspended,
	"USUSP": StateSuspended,
	"SSUSP": StateSuspended,
	"ZOMBI": StateFailed,
	"UNKWN": StateDisappeared,
}

// LSFServer implements the Server contract for IBM Spectrum LSF.
type LSFServer struct {
	conf    *config.Provider
	log     *zap.Logger
	run     Runner
	jobIDRe *regexp.Regexp
}

// NewLSFServer creates an LSF server.
func NewLSFServer(d Deps) *LSFServer {
	d = d.withDefaults()
	return &LSFServer{
		conf:    d.Conf,
		log:     d.Log,
		run:     d.Run,
		jobIDRe: regexp.MustCompile(`Job <([^>]+)> is submitted`),
	}
}

// Name returns "lsf".
func (l *LSFServer) Name() string { return QTypeLSF }

// QueueTest checks that bsub and bjobs are discoverable and executable.
func (l *LSFServer) QueueTest(warn bool) bool {
	logf := l.log.Debug
	if warn {
		logf = l.log.Warn
	}

	bsub := l.conf.Tool("bsub")
	if filepath.Dir(bsub) != "." && !isExecutable(bsub) {
		logf("cannot use lsf: configured bsub path is not an executable",
			zap.String("bsub", bsub))
		return false
	}
	path, err := exec.LookPath(bsub)
	if err != nil {
		logf("cannot use lsf: cannot find bsub", zap.Error(err))
		return false
	}
	bjobs := filepath.Join(filepath.Dir(path), "bjobs")
	if !isExecutable(bjobs) {
		logf("cannot use lsf: bjobs not found beside bsub",
			zap.String("bjobs", bjobs))
		return false
	}
	return true
}

// NormalizeJobID splits ids like "123[4]" into base and array components.
func (l *LSFServer) NormalizeJobID(raw string) (string, string) {
	raw = strings.TrimSpace(raw)
	if open := strings.Index(raw, "["); open >= 0 {
		arrayID := strings.TrimSuffix(raw[open+1:], "]")
		return strings.TrimSpace(raw[:open]), strings.TrimSpace(arrayID)
	}
	return raw, ""
}

// NormalizeState maps a native LSF state onto the canonical vocabulary.
func (l *LSFServer) NormalizeState(raw string) (State, error) {
	if st, ok := lsfStates[strings.ToUpper(strings.TrimSpace(raw))]; ok {
		return st, nil
	}
	return "", fmt.Errorf("%w: lsf state %q", ErrUnknownState, raw)
}

// lsfMinFields is the minimum token count of one wide bjobs row: six fixed
// leading columns, at least one job-name token, and a three-token submit
// time.
const lsfMinFields = 10

// QueueParser parses `bjobs -u all -a -w`. The -a flag keeps recently
// finished jobs in the listing, which serves as the history feed.
func (l *LSFServer) QueueParser(filter QueueFilter) (*QueueIter, error) {
	code, stdout, stderr, err := l.run.Run(context.Background(), 1, l.conf.Tool("bjobs"), "-u", "all", "-a", "-w")
	if err != nil {
		return nil, fmt.Errorf("bjobs failed: %w", err)
	}
	if code != 0 {
		// bjobs exits nonzero when the queue is empty.
		if strings.Contains(stdout+stderr, "No job found") {
			return newSliceIter(nil), nil
		}
		return nil, &CommandError{Command: "bjobs", Code: code, Stdout: stdout, Stderr: stderr}
	}

	var rows [][]string
	for _, line := range strings.Split(stdout, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "JOBID") {
			continue
		}
		fields := strings.Fields(trimmed)
		if len(fields) < lsfMinFields {
			return nil, NewParseError(QTypeLSF, "bjobs",
				fmt.Sprintf("expected at least %d fields, got %d", lsfMinFields, len(fields)), line)
		}
		rows = append(rows, fields)
	}

	return newRowIter(rows, func(row []string) (*JobRecord, error) {
		return l.sanitizeRow(row, filter)
	}), nil
}

func (l *LSFServer) sanitizeRow(row []string, filter QueueFilter) (*JobRecord, error) {
	state, err := l.NormalizeState(row[2])
	if err != nil {
		return nil, err
	}

	jobID, arrayID := l.NormalizeJobID(row[0])
	nodes := expandLSFHosts(row[5])
	numNodes := len(nodes)

	rec := &JobRecord{
		JobID:     jobID,
		ArrayID:   arrayID,
		Name:      strings.Join(row[6:len(row)-3], " "),
		User:      resolveUser(row[1]),
		Partition: row[3],
		State:     state,
		NodeList:  nodes,
	}
	if numNodes > 0 {
		rec.NumNodes = &numNodes
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

// expandLSFHosts flattens exec-host syntax like "4*node1:2*node2" into node
// names.
func expandLSFHosts(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "-" {
		return nil
	}
	parts := strings.Split(raw, ":")
	nodes := make([]string, 0, len(parts))
	for _, part := range parts {
		if star := strings.Index(part, "*"); star >= 0 {
			part = part[star+1:]
		}
		if part != "" {
			nodes = append(nodes, part)
		}
	}
	return nodes
}

// Submit submits a script with bsub, encoding dependencies as a
// -w "done(id) && done(id2)" expression.
func (l *LSFServer) Submit(scriptPath string, dependencies []string) (SubmissionResult, error) {
	l.log.Debug("submitting to lsf", zap.String("script", scriptPath))

	var args []string
	if len(dependencies) > 0 {
		exprs := make([]string, len(dependencies))
		for i, dep := range dependencies {
			exprs[i] = fmt.Sprintf("done(%s)", dep)
		}
		args = append(args, "-w", strings.Join(exprs, " && "))
	}
	args = append(args, scriptPath)

	code, stdout, stderr, err := l.run.Run(context.Background(), submitRetries, l.conf.Tool("bsub"), args...)
	if err != nil {
		return SubmissionResult{}, fmt.Errorf("bsub failed: %w", err)
	}
	if code != 0 {
		l.log.Error("bsub failed",
			zap.Int("code", code), zap.String("stdout", stdout), zap.String("stderr", stderr))
		return SubmissionResult{Error: true, Stdout: stdout, Stderr: stderr}, nil
	}

	m := l.jobIDRe.FindStringSubmatch(stdout)
	if m == nil {
		return SubmissionResult{Error: true, Stdout: stdout, Stderr: stderr}, nil
	}
	jobID, _ := l.NormalizeJobID(m[1])
	return SubmissionResult{JobID: jobID, Stdout: stdout, Stderr: stderr}, nil
}

// Kill cancels all given jobs with a single bkill invocation.
func (l *LSFServer) Kill(jobIDs []string) bool {
	code, _, _, err := l.run.Run(context.Background(), submitRetries, l.conf.Tool("bkill"), jobIDs...)
	return err == nil && code == 0
}

// Metrics is not available on LSF in this implementation.
func (l *LSFServer) Metrics(jobID string) ([][]string, error) {
	return nil, NewNotImplementedError(QTypeLSF, "Metrics")
}

// ParseStrangeOptions translates nodes/cores into #BSUB directives: a total
// slot count plus a span constraint when the job is single-node.
func (l *LSFServer) ParseStrangeOptions(opts map[string]string) ([]string, map[string]string, []string) {
	var out []string

	nodes := 1
	if n, ok := opts["nodes"]; ok {
		delete(opts, "nodes")
		if parsed := optInt(n); parsed != nil {
			nodes = *parsed
		}
	}
	if c, ok := opts["cores"]; ok {
		delete(opts, "cores")
		if parsed := optInt(c); parsed != nil {
			out = append(out, fmt.Sprintf("#BSUB -n %d", *parsed*nodes))
			if nodes == 1 {
				out = append(out, `#BSUB -R "span[hosts=1]"`)
			}
		}
	}
	return out, opts, nil
}

// GenScripts builds the bsub submission script.
func (l *LSFServer) GenScripts(job *JobInfo, command string, args []string, precmd, modstr string) (*Script, *Script, error) {
	sub, err := renderRunnerScript(job, command, precmd, modstr)
	if err != nil {
		return nil, nil, err
	}
	return &Script{
		Name: fmt.Sprintf("%s.%s.bsub", job.Name, job.Suffix),
		Text: sub,
	}, nil, nil
}
