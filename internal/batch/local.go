package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// LocalServer is the multiprocessing fallback backend: submitted scripts run
// in-process through a bounded worker pool instead of a cluster scheduler.
type LocalServer struct {
	log  *zap.Logger
	sem  chan struct{}
	user string
	host string

	mu     sync.Mutex
	jobs   map[string]*localJob
	order  []string
	nextID int
}

type localJob struct {
	id       string
	name     string
	script   string
	deps     []string
	state    State
	exitCode *int
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewLocalServer creates a local backend with the configured pool width
// (one worker per CPU when unset).
func NewLocalServer(d Deps) *LocalServer {
	d = d.withDefaults()

	width := d.Conf.LocalPoolSize()
	if width <= 0 {
		width = runtime.NumCPU()
	}

	username := "unknown"
	if u, err := user.Current(); err == nil {
		username = u.Username
	}
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}

	return &LocalServer{
		log:    d.Log,
		sem:    make(chan struct{}, width),
		user:   username,
		host:   host,
		jobs:   make(map[string]*localJob),
		nextID: 1,
	}
}

// Name returns "local".
func (l *LocalServer) Name() string { return QTypeLocal }

// QueueTest always succeeds: the local backend needs no external tools.
func (l *LocalServer) QueueTest(warn bool) bool { return true }

// NormalizeJobID is the identity: local jobs have no array component.
func (l *LocalServer) NormalizeJobID(raw string) (string, string) {
	return strings.TrimSpace(raw), ""
}

// NormalizeState validates against the canonical vocabulary; local jobs are
// recorded in canonical states directly.
func (l *LocalServer) NormalizeState(raw string) (State, error) {
	st := State(strings.ToLower(strings.TrimSpace(raw)))
	if !st.Known() {
		return st, fmt.Errorf("%w: local state %q", ErrUnknownState, raw)
	}
	return st, nil
}

// Submit queues a script for in-process execution. The job waits for its
// dependencies, then runs when a pool slot frees up.
func (l *LocalServer) Submit(scriptPath string, dependencies []string) (SubmissionResult, error) {
	ctx, cancel := context.WithCancel(context.Background())

	l.mu.Lock()
	id := strconv.Itoa(l.nextID)
	l.nextID++
	job := &localJob{
		id:     id,
		name:   strings.TrimSuffix(scriptPath[strings.LastIndex(scriptPath, "/")+1:], ".local"),
		script: scriptPath,
		deps:   append([]string(nil), dependencies...),
		state:  StatePending,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	l.jobs[id] = job
	l.order = append(l.order, id)
	l.mu.Unlock()

	go l.runJob(ctx, job)

	return SubmissionResult{JobID: id}, nil
}

func (l *LocalServer) runJob(ctx context.Context, job *localJob) {
	defer close(job.done)
	defer job.cancel()

	if !l.waitForDeps(ctx, job) {
		return
	}

	select {
	case l.sem <- struct{}{}:
		defer func() { <-l.sem }()
	case <-ctx.Done():
		l.setState(job, StateCancelled, nil)
		return
	}

	l.setState(job, StateRunning, nil)
	cmd := exec.CommandContext(ctx, "/bin/bash", job.script)
	err := cmd.Run()

	if ctx.Err() != nil {
		l.setState(job, StateCancelled, nil)
		return
	}

	code := 0
	if err != nil {
		code = 1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
	}
	if code == 0 {
		l.setState(job, StateCompleted, &code)
	} else {
		l.setState(job, StateFailed, &code)
	}
}

// waitForDeps blocks until every dependency finishes. A failed dependency
// fails this job without running it. Unknown dependency ids are treated as
// already satisfied.
func (l *LocalServer) waitForDeps(ctx context.Context, job *localJob) bool {
	for _, depID := range job.deps {
		l.mu.Lock()
		dep, ok := l.jobs[depID]
		l.mu.Unlock()
		if !ok {
			l.log.Debug("dependency not tracked, assuming satisfied",
				zap.String("job", job.id), zap.String("dep", depID))
			continue
		}

		select {
		case <-dep.done:
		case <-ctx.Done():
			l.setState(job, StateCancelled, nil)
			return false
		}

		l.mu.Lock()
		depFailed := !dep.state.Good()
		l.mu.Unlock()
		if depFailed {
			l.log.Debug("dependency failed, failing job",
				zap.String("job", job.id), zap.String("dep", depID))
			l.setState(job, StateFailed, nil)
			return false
		}
	}
	return true
}

func (l *LocalServer) setState(job *localJob, st State, exitCode *int) {
	l.mu.Lock()
	job.state = st
	job.exitCode = exitCode
	l.mu.Unlock()
}

// Kill cancels all given jobs. Always true: cancellation of an in-process
// job cannot fail to be requested.
func (l *LocalServer) Kill(jobIDs []string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range jobIDs {
		if job, ok := l.jobs[id]; ok {
			job.cancel()
		}
	}
	return true
}

// QueueParser reports a snapshot of the pool's job table.
func (l *LocalServer) QueueParser(filter QueueFilter) (*QueueIter, error) {
	l.mu.Lock()
	recs := make([]JobRecord, 0, len(l.order))
	for _, id := range l.order {
		job := l.jobs[id]
		rec := JobRecord{
			JobID:     job.id,
			Name:      job.name,
			User:      l.user,
			Partition: QTypeLocal,
			State:     job.state,
			NodeList:  []string{l.host},
			ExitCode:  job.exitCode,
		}
		one := 1
		rec.NumNodes = &one
		recs = append(recs, rec)
	}
	l.mu.Unlock()

	filtered := recs[:0]
	for _, rec := range recs {
		if filter.User != "" && rec.User != filter.User {
			continue
		}
		if filter.Partition != "" && rec.Partition != filter.Partition {
			continue
		}
		if filter.JobID != "" && rec.JobID != filter.JobID {
			continue
		}
		filtered = append(filtered, rec)
	}
	return newSliceIter(filtered), nil
}

// Metrics reports id/state/exit-code rows from the job table.
func (l *LocalServer) Metrics(jobID string) ([][]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var rows [][]string
	for _, id := range l.order {
		if jobID != "" && id != jobID {
			continue
		}
		job := l.jobs[id]
		exit := ""
		if job.exitCode != nil {
			exit = strconv.Itoa(*job.exitCode)
		}
		rows = append(rows, []string{job.id, job.name, string(job.state), exit})
	}
	return rows, nil
}

// Shutdown cancels every tracked job.
func (l *LocalServer) Shutdown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, job := range l.jobs {
		job.cancel()
	}
}

// ParseStrangeOptions consumes nothing: the local backend has no script
// directives.
func (l *LocalServer) ParseStrangeOptions(opts map[string]string) ([]string, map[string]string, []string) {
	return nil, opts, nil
}

// GenScripts builds the local runner script.
func (l *LocalServer) GenScripts(job *JobInfo, command string, args []string, precmd, modstr string) (*Script, *Script, error) {
	sub, err := renderRunnerScript(job, command, precmd, modstr)
	if err != nil {
		return nil, nil, err
	}
	return &Script{
		Name: job.Name + "." + job.Suffix + ".local",
		Text: sub,
	}, nil, nil
}
