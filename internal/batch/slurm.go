package batch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/raul-delacruz/fyrd/internal/config"
)

// squeueFieldWidth is the fixed column width requested from squeue -O.
// The value must match the width used when slicing the output.
const squeueFieldWidth = 400

// squeueFields is the ordered live-queue projection. The reconciler depends
// on this exact field list and order.
var squeueFields = []string{
	"jobid", "arraytaskid", "name", "userid", "partition",
	"state", "nodelist", "numnodes", "numcpus", "exit_code",
}

// sacctQueueFields is the accounting projection merged into the live queue.
var sacctQueueFields = []string{
	"jobid", "jobname", "user", "partition", "state",
	"nodelist", "reqnodes", "ncpus", "exitcode",
}

// sacctMetricFields is the projection used by Metrics.
var sacctMetricFields = []string{
	"JobID", "Partition", "AllocCPUs", "AllocNodes", "AllocTres",
	"AveCPUFreq", "AveDiskRead", "AveDiskWrite", "AveRSS",
	"ConsumedEnergy", "Submit", "Start", "End", "Elapsed",
}

// SlurmServer implements the Server contract for SLURM.
type SlurmServer struct {
	conf *config.Provider
	log  *zap.Logger
	run  Runner
}

// NewSlurmServer creates a SLURM server. Tool paths come from config, with
// the bare command names as defaults.
func NewSlurmServer(d Deps) *SlurmServer {
	d = d.withDefaults()
	return &SlurmServer{conf: d.Conf, log: d.Log, run: d.Run}
}

// Name returns "slurm".
func (s *SlurmServer) Name() string { return QTypeSlurm }

// QueueTest checks that sbatch and squeue are discoverable and executable.
func (s *SlurmServer) QueueTest(warn bool) bool {
	logf := s.log.Debug
	if warn {
		logf = s.log.Warn
	}

	sbatch := s.conf.Tool("sbatch")
	if filepath.Dir(sbatch) != "." && !isExecutable(sbatch) {
		logf("cannot use slurm: configured sbatch path is not an executable",
			zap.String("sbatch", sbatch))
		return false
	}
	path, err := exec.LookPath(sbatch)
	if err != nil {
		logf("cannot use slurm: cannot find sbatch", zap.Error(err))
		return false
	}

	// squeue is expected to live next to sbatch.
	squeue := filepath.Join(filepath.Dir(path), "squeue")
	if !isExecutable(squeue) {
		logf("cannot use slurm: squeue not found beside sbatch",
			zap.String("squeue", squeue))
		return false
	}
	return true
}

// NormalizeJobID splits a composite id like "123_4" into base and array
// components.
func (s *SlurmServer) NormalizeJobID(raw string) (string, string) {
	return splitArrayID(raw, "_")
}

// NormalizeState validates that the native SLURM state, lower-cased, is in
// the canonical vocabulary. SLURM's vocabulary coincides with the canonical
// one, so this is identity plus validation.
func (s *SlurmServer) NormalizeState(raw string) (State, error) {
	st := State(strings.ToLower(strings.TrimSpace(raw)))
	if !st.Known() {
		return st, fmt.Errorf("%w: slurm state %q", ErrUnknownState, raw)
	}
	return st, nil
}

// QueueParser queries squeue for the live queue and sacct for history, then
// merges them into one deduplicated stream. sacct rows are appended after
// all live rows, out of order with respect to the real queue.
func (s *SlurmServer) QueueParser(filter QueueFilter) (*QueueIter, error) {
	// Non-numeric job id filters are ignored, matching the reference
	// behavior.
	if filter.JobID != "" {
		if _, err := strconv.Atoi(filter.JobID); err != nil {
			filter.JobID = ""
		}
	}

	rows, err := s.squeueRows()
	if err != nil {
		return nil, err
	}

	rows, err = s.mergeSacct(rows)
	if err != nil {
		return nil, err
	}

	return newRowIter(rows, func(row []string) (*JobRecord, error) {
		return s.sanitizeRow(row, filter)
	}), nil
}

// squeueRows fetches the live queue with a fixed-width field projection and
// slices each line by column.
func (s *SlurmServer) squeueRows() ([][]string, error) {
	format := make([]string, len(squeueFields))
	for i, f := range squeueFields {
		format[i] = fmt.Sprintf("%s:%d", f, squeueFieldWidth)
	}
	args := []string{"-h", "-O", strings.Join(format, ",")}

	code, stdout, stderr, err := s.run.Run(context.Background(), 1, s.conf.Tool("squeue"), args...)
	if err != nil {
		return nil, fmt.Errorf("squeue failed: %w", err)
	}
	if code != 0 {
		return nil, &CommandError{Command: "squeue", Code: code, Stdout: stdout, Stderr: stderr}
	}

	var rows [][]string
	for _, line := range strings.Split(stdout, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		row := make([]string, len(squeueFields))
		for i := range squeueFields {
			start := i * squeueFieldWidth
			end := start + squeueFieldWidth
			if start > len(line) {
				start = len(line)
			}
			if end > len(line) {
				end = len(line)
			}
			row[i] = strings.TrimRight(line[start:end], " ")
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// mergeSacct appends accounting rows for jobs squeue no longer shows. SLURM
// can evict finished jobs from squeue within seconds; sacct retains history
// for the current user. A failing sacct degrades to "no historical rows".
func (s *SlurmServer) mergeSacct(live [][]string) ([][]string, error) {
	args := []string{"-p", "--format=" + strings.Join(sacctQueueFields, ",")}
	code, stdout, _, err := s.run.Run(context.Background(), 1, s.conf.Tool("sacct"), args...)
	if err != nil || code != 0 {
		s.log.Debug("sacct unavailable, skipping history merge", zap.Error(err), zap.Int("code", code))
		return live, nil
	}

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) <= 1 {
		s.log.Debug("no job info in sacct")
		return live, nil
	}

	liveIDs := make(map[string]bool, len(live))
	for _, row := range live {
		liveIDs[row[0]] = true
	}

	// lines[0] is the header row.
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(strings.Trim(line, " |"), "|")
		if len(fields) != len(sacctQueueFields) {
			return nil, NewParseError(QTypeSlurm, "sacct",
				fmt.Sprintf("expected %d columns, got %d", len(sacctQueueFields), len(fields)), line)
		}

		// Job steps carry a "." in the id field; only whole jobs are kept.
		if strings.Contains(fields[0], ".") {
			s.log.Debug("skipping sacct job step", zap.String("id", fields[0]))
			continue
		}

		sid, sarr := s.NormalizeJobID(fields[0])
		if liveIDs[sid] {
			s.log.Debug("job still in squeue output", zap.String("id", sid))
			continue
		}

		row := []string{
			sid, sarr, fields[1], fields[2], fields[3], fields[4],
			fields[5], fields[6], fields[7], fields[8],
		}
		live = append(live, row)
	}
	return live, nil
}

// sanitizeRow coerces one merged row into a JobRecord, applying filters.
// Returns (nil, nil) when a filter drops the row.
func (s *SlurmServer) sanitizeRow(row []string, filter QueueFilter) (*JobRecord, error) {
	if len(row) != len(squeueFields) {
		return nil, NewParseError(QTypeSlurm, "squeue/sacct",
			fmt.Sprintf("expected %d fields, got %d", len(squeueFields), len(row)),
			strings.Join(row, "|"))
	}

	state, err := s.NormalizeState(row[5])
	if err != nil {
		return nil, err
	}

	rec := &JobRecord{
		JobID:     strings.TrimSpace(row[0]),
		Name:      strings.TrimSpace(row[2]),
		Partition: strings.TrimSpace(row[4]),
		State:     state,
		NumNodes:  optInt(row[7]),
		NumCPUs:   optInt(row[8]),
		ExitCode:  optExitCode(row[9]),
	}

	if arr := strings.TrimSpace(row[1]); arr != "" && !strings.EqualFold(arr, "n/a") {
		rec.ArrayID = arr
	}
	rec.User = resolveUser(strings.TrimSpace(row[3]))
	rec.NodeList = ExpandNodeList(row[6])

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

// Submit submits a script with sbatch, encoding dependencies as
// --dependency=afterok:id:id. The raw submitted id is normalized and only
// the base job id is returned.
func (s *SlurmServer) Submit(scriptPath string, dependencies []string) (SubmissionResult, error) {
	s.log.Debug("submitting to slurm", zap.String("script", scriptPath))

	var args []string
	if len(dependencies) > 0 {
		args = append(args, "--dependency=afterok:"+strings.Join(dependencies, ":"))
	}
	args = append(args, scriptPath)

	code, stdout, stderr, err := s.run.Run(context.Background(), submitRetries, s.conf.Tool("sbatch"), args...)
	if err != nil {
		return SubmissionResult{}, fmt.Errorf("sbatch failed: %w", err)
	}
	if code != 0 {
		s.log.Error("sbatch failed",
			zap.Int("code", code), zap.String("stdout", stdout), zap.String("stderr", stderr))
		return SubmissionResult{Error: true, Stdout: stdout, Stderr: stderr}, nil
	}

	// sbatch prints "Submitted batch job <id>"; the id is the last field.
	out := strings.Fields(strings.TrimSpace(stdout))
	if len(out) == 0 {
		return SubmissionResult{Error: true, Stdout: stdout, Stderr: stderr}, nil
	}
	jobID, _ := s.NormalizeJobID(out[len(out)-1])
	return SubmissionResult{JobID: jobID, Stdout: stdout, Stderr: stderr}, nil
}

// Kill cancels all given jobs with a single scancel invocation.
func (s *SlurmServer) Kill(jobIDs []string) bool {
	code, _, _, err := s.run.Run(context.Background(), submitRetries, s.conf.Tool("scancel"), jobIDs...)
	return err == nil && code == 0
}

// Metrics returns raw sacct accounting rows for the given job, or for all
// of the current user's jobs when jobID is empty.
func (s *SlurmServer) Metrics(jobID string) ([][]string, error) {
	s.log.Debug("getting job metrics", zap.String("job", jobID))

	args := []string{"-p", "--noheader", "--noconvert",
		"--format=" + strings.Join(sacctMetricFields, ",")}
	if jobID != "" {
		args = append(args, "-j", jobID)
	}

	code, stdout, _, err := s.run.Run(context.Background(), 1, s.conf.Tool("sacct"), args...)
	if err != nil || code != 0 {
		s.log.Error("error running sacct to get the metrics", zap.Error(err), zap.Int("code", code))
		return nil, nil
	}

	var rows [][]string
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, strings.Split(strings.Trim(line, " |"), "|"))
	}
	return rows, nil
}

// ParseStrangeOptions translates option keys the generic formatter cannot
// express into #SBATCH directive lines. Consumed keys are removed from the
// map. SLURM needs no extra submit arguments, so the third result is nil.
func (s *SlurmServer) ParseStrangeOptions(opts map[string]string) ([]string, map[string]string, []string) {
	var out []string

	var nodes int
	if n, ok := opts["nodes"]; ok {
		delete(opts, "nodes")
		if parsed, err := strconv.Atoi(n); err == nil {
			nodes = parsed
			out = append(out, fmt.Sprintf("#SBATCH --nodes %d", nodes))
		}
	}

	if t, ok := opts["tasks"]; ok {
		delete(opts, "tasks")
		if parsed, err := strconv.Atoi(t); err == nil {
			out = append(out, fmt.Sprintf("#SBATCH --ntasks %d", parsed))
		}
	}

	if c, ok := opts["cpus_per_task"]; ok {
		delete(opts, "cpus_per_task")
		if parsed, err := strconv.Atoi(c); err == nil {
			out = append(out, fmt.Sprintf("#SBATCH --cpus-per-task %d", parsed))
		}
	}

	// tasks_per_node wins over cores; cores is the per-node processor cap.
	if tpn, ok := opts["tasks_per_node"]; ok {
		delete(opts, "tasks_per_node")
		delete(opts, "cores")
		if parsed, err := strconv.Atoi(tpn); err == nil {
			out = append(out, fmt.Sprintf("#SBATCH --tasks-per-node %d", parsed))
		}
	} else if c, ok := opts["cores"]; ok {
		delete(opts, "cores")
		if parsed, err := strconv.Atoi(c); err == nil {
			if nodes == 0 {
				out = append(out, "#SBATCH --nodes 1")
			}
			out = append(out, fmt.Sprintf("#SBATCH --tasks-per-node %d", parsed))
		}
	}

	if _, ok := opts["exclusive"]; ok {
		delete(opts, "exclusive")
		out = append(out, "#SBATCH --exclusive")
	}

	return out, opts, nil
}

// GenScripts builds the sbatch submission script. SLURM jobs run from a
// single tracked script, so the execution script is nil.
func (s *SlurmServer) GenScripts(job *JobInfo, command string, args []string, precmd, modstr string) (*Script, *Script, error) {
	sub, err := renderRunnerScript(job, command, precmd, modstr)
	if err != nil {
		return nil, nil, err
	}
	return &Script{
		Name: fmt.Sprintf("%s.%s.sbatch", job.Name, job.Suffix),
		Text: sub,
	}, nil, nil
}

func splitArrayID(raw, sep string) (string, string) {
	raw = strings.TrimSpace(raw)
	if idx := strings.Index(raw, sep); idx >= 0 {
		return strings.TrimSpace(raw[:idx]), strings.TrimSpace(raw[idx+len(sep):])
	}
	return raw, ""
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0111 != 0
}
