package batch

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startBatchServer serves srv on a loopback listener and returns its address.
func startBatchServer(t *testing.T, srv Server) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { lis.Close() })
	go Serve(lis, srv, nil)
	return lis.Addr().String()
}

func TestDialUnreachable(t *testing.T) {
	// Grab a port that is guaranteed closed by the time we dial it.
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	_, err = Dial(addr)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestProbeRemoteQType(t *testing.T) {
	local := NewLocalServer(Deps{})
	defer local.Shutdown()
	addr := startBatchServer(t, local)

	qtype, err := probeRemoteQType(addr)
	require.NoError(t, err)
	assert.Equal(t, QTypeLocal, qtype)
}

func TestRemoteClientRoundTrip(t *testing.T) {
	local := NewLocalServer(Deps{})
	defer local.Shutdown()
	addr := startBatchServer(t, local)

	client, err := newClient(QTypeLocal, true, addr, Deps{})
	require.NoError(t, err)
	defer client.Release()

	assert.True(t, client.Remote())
	assert.Equal(t, addr, client.URI())
	assert.True(t, client.Connected())
	assert.True(t, client.QueueTest(false))

	dir := t.TempDir()
	script := writeLocalScript(t, dir, "remote.local", "true")

	res, err := client.Submit(script, nil)
	require.NoError(t, err)
	assert.False(t, res.Error)
	require.NotEmpty(t, res.JobID)

	// The snapshot crosses the wire fully sanitized.
	waitLocalState(t, local, res.JobID)
	iter, err := client.QueueParser(QueueFilter{JobID: res.JobID})
	require.NoError(t, err)
	jobs, err := iter.Collect()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, res.JobID, jobs[0].JobID)
	assert.Equal(t, StateCompleted, jobs[0].State)

	rows, err := client.Metrics(res.JobID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.True(t, client.Kill([]string{res.JobID}))
}

func TestRemoteClientOpsRunLocally(t *testing.T) {
	local := NewLocalServer(Deps{})
	defer local.Shutdown()
	addr := startBatchServer(t, local)

	client, err := newClient(QTypeLocal, true, addr, Deps{})
	require.NoError(t, err)
	defer client.Release()

	// Script generation never crosses the wire.
	sub, _, err := client.GenScripts(
		&JobInfo{Name: "j", Suffix: "s", RunPath: "/tmp"}, "true", nil, "", "")
	require.NoError(t, err)
	assert.Equal(t, "j.s.local", sub.Name)
}

func TestReleasedClientRefusesCalls(t *testing.T) {
	local := NewLocalServer(Deps{})
	defer local.Shutdown()
	addr := startBatchServer(t, local)

	client, err := newClient(QTypeLocal, true, addr, Deps{})
	require.NoError(t, err)
	client.Release()

	assert.False(t, client.Connected())
	assert.False(t, client.QueueTest(false))

	_, err = client.QueueParser(QueueFilter{})
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = client.Submit("/tmp/x", nil)
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = client.Metrics("")
	assert.ErrorIs(t, err, ErrNotConnected)

	assert.False(t, client.Kill([]string{"1"}))
}
