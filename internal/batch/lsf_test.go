package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLSF(run Runner) *LSFServer {
	return NewLSFServer(Deps{Run: run})
}

func TestLSFNormalizeJobID(t *testing.T) {
	s := newTestLSF(newStubRunner())

	id, arr := s.NormalizeJobID("12345")
	assert.Equal(t, "12345", id)
	assert.Empty(t, arr)

	id, arr = s.NormalizeJobID("12345[7]")
	assert.Equal(t, "12345", id)
	assert.Equal(t, "7", arr)
}

func TestLSFNormalizeState(t *testing.T) {
	s := newTestLSF(newStubRunner())

	tests := []struct {
		raw  string
		want State
	}{
		{"PEND", StatePending},
		{"PROV", StatePending},
		{"WAIT", StatePending},
		{"RUN", StateRunning},
		{"DONE", StateCompleted},
		{"EXIT", StateFailed},
		{"ZOMBI", StateFailed},
		{"PSUSP", StateSuspended},
		{"USUSP", StateSuspended},
		{"SSUSP", StateSuspended},
		{"UNKWN", StateDisappeared},
	}
	for _, tt := range tests {
		st, err := s.NormalizeState(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, st, tt.raw)
	}

	_, err := s.NormalizeState("WEIRD")
	assert.ErrorIs(t, err, ErrUnknownState)
}

const lsfBjobsOutput = `JOBID USER STAT QUEUE FROM_HOST EXEC_HOST JOB_NAME SUBMIT_TIME
100 alice RUN normal login1 4*node1:2*node2 align sample one Aug 20 10:00
101 bob PEND normal login1 - call Aug 20 10:05
102 alice DONE normal login1 node3 old run Aug 19 09:00
`

func TestLSFQueueParser(t *testing.T) {
	run := newStubRunner()
	run.on("bjobs", stubResult{stdout: lsfBjobsOutput})

	iter, err := newTestLSF(run).QueueParser(QueueFilter{})
	require.NoError(t, err)
	jobs, err := iter.Collect()
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	assert.Equal(t, "100", jobs[0].JobID)
	assert.Equal(t, "alice", jobs[0].User)
	assert.Equal(t, "normal", jobs[0].Partition)
	assert.Equal(t, StateRunning, jobs[0].State)
	assert.Equal(t, "align sample one", jobs[0].Name)
	assert.Equal(t, []string{"node1", "node2"}, jobs[0].NodeList)
	assert.Equal(t, intPtr(2), jobs[0].NumNodes)

	assert.Equal(t, StatePending, jobs[1].State)
	assert.Nil(t, jobs[1].NodeList)
	assert.Nil(t, jobs[1].NumNodes)

	// bjobs -a keeps finished jobs in the listing.
	assert.Equal(t, StateCompleted, jobs[2].State)
	assert.Equal(t, []string{"node3"}, jobs[2].NodeList)

	assert.Equal(t, []string{"-u", "all", "-a", "-w"}, run.lastArgs("bjobs"))
}

func TestLSFQueueParserEmptyQueue(t *testing.T) {
	run := newStubRunner()
	run.on("bjobs", stubResult{code: 255, stderr: "No job found\n"})

	iter, err := newTestLSF(run).QueueParser(QueueFilter{})
	require.NoError(t, err)
	jobs, err := iter.Collect()
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestLSFQueueParserMalformedRow(t *testing.T) {
	run := newStubRunner()
	run.on("bjobs", stubResult{stdout: "100 alice RUN normal\n"})

	_, err := newTestLSF(run).QueueParser(QueueFilter{})
	require.Error(t, err)
	assert.True(t, IsParseError(err))
}

func TestLSFSubmit(t *testing.T) {
	run := newStubRunner()
	run.on("bsub", stubResult{stdout: "Job <4242> is submitted to queue <normal>.\n"})

	res, err := newTestLSF(run).Submit("/tmp/job.bsub", []string{"10", "11"})
	require.NoError(t, err)
	assert.False(t, res.Error)
	assert.Equal(t, "4242", res.JobID)

	args := run.lastArgs("bsub")
	require.Len(t, args, 3)
	assert.Equal(t, "-w", args[0])
	assert.Equal(t, "done(10) && done(11)", args[1])
	assert.Equal(t, "/tmp/job.bsub", args[2])
}

func TestLSFSubmitUnparseableOutput(t *testing.T) {
	run := newStubRunner()
	run.on("bsub", stubResult{stdout: "something unexpected\n"})

	res, err := newTestLSF(run).Submit("/tmp/job.bsub", nil)
	require.NoError(t, err)
	assert.True(t, res.Error)
	assert.Empty(t, res.JobID)
}

func TestLSFKill(t *testing.T) {
	run := newStubRunner()
	run.on("bkill", stubResult{})

	assert.True(t, newTestLSF(run).Kill([]string{"100"}))
	assert.Equal(t, []string{"100"}, run.lastArgs("bkill"))
}

func TestLSFMetricsNotImplemented(t *testing.T) {
	_, err := newTestLSF(newStubRunner()).Metrics("100")
	require.Error(t, err)
	var nie *NotImplementedError
	assert.ErrorAs(t, err, &nie)
}

func TestLSFParseStrangeOptions(t *testing.T) {
	s := newTestLSF(newStubRunner())

	directives, remaining, extra := s.ParseStrangeOptions(map[string]string{
		"nodes": "1",
		"cores": "8",
		"queue": "normal",
	})
	assert.Nil(t, extra)
	assert.Contains(t, directives, "#BSUB -n 8")
	assert.Contains(t, directives, `#BSUB -R "span[hosts=1]"`)
	assert.Contains(t, remaining, "queue")

	directives, _, _ = s.ParseStrangeOptions(map[string]string{
		"nodes": "4",
		"cores": "8",
	})
	assert.Contains(t, directives, "#BSUB -n 32")
	assert.NotContains(t, directives, `#BSUB -R "span[hosts=1]"`)
}

func TestLSFGenScripts(t *testing.T) {
	sub, execScript, err := newTestLSF(newStubRunner()).GenScripts(
		&JobInfo{Name: "align", Suffix: "job1", RunPath: "/scratch"},
		"echo hi", nil, "#BSUB -q normal", "")
	require.NoError(t, err)
	assert.Nil(t, execScript)
	assert.Equal(t, "align.job1.bsub", sub.Name)
	assert.Contains(t, sub.Text, "#BSUB -q normal")
}

func TestExpandLSFHosts(t *testing.T) {
	assert.Equal(t, []string{"node1", "node2"}, expandLSFHosts("4*node1:2*node2"))
	assert.Equal(t, []string{"node3"}, expandLSFHosts("node3"))
	assert.Nil(t, expandLSFHosts("-"))
	assert.Nil(t, expandLSFHosts(""))
}
