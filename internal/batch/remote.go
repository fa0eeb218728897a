package batch

import (
	"fmt"
	"net"
	"net/rpc"
	"time"

	"go.uber.org/zap"
)

// rpcServiceName is the name the batch service registers under.
const rpcServiceName = "Batch"

// dialTimeout bounds the connection attempt to a remote batch server.
const dialTimeout = 10 * time.Second

// The RPC boundary carries only plain serializable values. Server-side
// errors that are part of normal operation (submission rejection, unknown
// state) are flattened into result fields; only transport and contract
// failures cross as RPC errors, and those arrive as strings, never as
// native process-error types.

// QueueTestArgs carries the warn flag.
type QueueTestArgs struct {
	Warn bool
}

// BoolReply carries a bare boolean result.
type BoolReply struct {
	OK bool
}

// NormalizeJobIDArgs carries a raw composite job id.
type NormalizeJobIDArgs struct {
	Raw string
}

// NormalizeJobIDReply carries the split id components.
type NormalizeJobIDReply struct {
	JobID   string
	ArrayID string
}

// NormalizeStateArgs carries a raw native state string.
type NormalizeStateArgs struct {
	Raw string
}

// NormalizeStateReply carries the canonical state.
type NormalizeStateReply struct {
	State State
}

// QueueParseArgs carries the queue filter.
type QueueParseArgs struct {
	Filter QueueFilter
}

// QueueParseReply carries the reconciled snapshot, fully sanitized on the
// server side.
type QueueParseReply struct {
	Jobs []JobRecord
}

// SubmitArgs carries a submission request.
type SubmitArgs struct {
	ScriptPath   string
	Dependencies []string
}

// KillArgs carries the ids to cancel.
type KillArgs struct {
	JobIDs []string
}

// MetricsArgs carries an optional job id scope.
type MetricsArgs struct {
	JobID string
}

// MetricsReply carries raw accounting rows.
type MetricsReply struct {
	Rows [][]string
}

// QTypeReply carries the server's backend type tag.
type QTypeReply struct {
	Name string
}

// BatchService exposes a Server over net/rpc.
type BatchService struct {
	srv Server
	log *zap.Logger
}

// NewBatchService wraps a backend server for remote exposure.
func NewBatchService(srv Server, log *zap.Logger) *BatchService {
	if log == nil {
		log = zap.NewNop()
	}
	return &BatchService{srv: srv, log: log}
}

// QType reports which backend this server fronts, used by the auto
// detection path.
func (b *BatchService) QType(_ struct{}, reply *QTypeReply) error {
	reply.Name = b.srv.Name()
	return nil
}

// QueueTest runs the backend's functionality test.
func (b *BatchService) QueueTest(args QueueTestArgs, reply *BoolReply) error {
	reply.OK = b.srv.QueueTest(args.Warn)
	return nil
}

// NormalizeJobID splits a composite job id.
func (b *BatchService) NormalizeJobID(args NormalizeJobIDArgs, reply *NormalizeJobIDReply) error {
	reply.JobID, reply.ArrayID = b.srv.NormalizeJobID(args.Raw)
	return nil
}

// NormalizeState maps a native state onto the canonical vocabulary.
func (b *BatchService) NormalizeState(args NormalizeStateArgs, reply *NormalizeStateReply) error {
	st, err := b.srv.NormalizeState(args.Raw)
	if err != nil {
		return err
	}
	reply.State = st
	return nil
}

// QueueParse runs the reconciler and returns the full snapshot.
func (b *BatchService) QueueParse(args QueueParseArgs, reply *QueueParseReply) error {
	iter, err := b.srv.QueueParser(args.Filter)
	if err != nil {
		return err
	}
	jobs, err := iter.Collect()
	if err != nil {
		return err
	}
	reply.Jobs = jobs
	return nil
}

// Submit submits a script. Scheduler rejection travels inside the result,
// never as an RPC error.
func (b *BatchService) Submit(args SubmitArgs, reply *SubmissionResult) error {
	res, err := b.srv.Submit(args.ScriptPath, args.Dependencies)
	if err != nil {
		return err
	}
	*reply = res
	return nil
}

// Kill requests cancellation of the given jobs.
func (b *BatchService) Kill(args KillArgs, reply *BoolReply) error {
	reply.OK = b.srv.Kill(args.JobIDs)
	return nil
}

// Metrics returns raw accounting rows.
func (b *BatchService) Metrics(args MetricsArgs, reply *MetricsReply) error {
	rows, err := b.srv.Metrics(args.JobID)
	if err != nil {
		return err
	}
	reply.Rows = rows
	return nil
}

// Serve exposes srv on the listener and blocks, serving each connection in
// its own goroutine. Typical deployment is one such server process per
// cluster.
func Serve(lis net.Listener, srv Server, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	rpcSrv := rpc.NewServer()
	if err := rpcSrv.RegisterName(rpcServiceName, NewBatchService(srv, log)); err != nil {
		return err
	}
	log.Info("batch server listening",
		zap.String("addr", lis.Addr().String()), zap.String("qtype", srv.Name()))
	for {
		conn, err := lis.Accept()
		if err != nil {
			return err
		}
		go rpcSrv.ServeConn(conn)
	}
}

// Dial connects to a remote batch server.
func Dial(uri string) (*rpc.Client, error) {
	conn, err := net.DialTimeout("tcp", uri, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotConnected, uri, err)
	}
	return rpc.NewClient(conn), nil
}

// probeRemoteQType opens a throwaway connection and asks the far side which
// backend it fronts.
func probeRemoteQType(uri string) (string, error) {
	cli, err := Dial(uri)
	if err != nil {
		return "", err
	}
	defer cli.Close()

	var reply QTypeReply
	if err := cli.Call(rpcServiceName+".QType", struct{}{}, &reply); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return reply.Name, nil
}

// remoteServer is the client-side proxy implementing Server by delegating
// every call over the RPC connection.
type remoteServer struct {
	cli  *rpc.Client
	name string
}

func (r *remoteServer) Name() string { return r.name }

func (r *remoteServer) QueueTest(warn bool) bool {
	var reply BoolReply
	if err := r.cli.Call(rpcServiceName+".QueueTest", QueueTestArgs{Warn: warn}, &reply); err != nil {
		return false
	}
	return reply.OK
}

func (r *remoteServer) NormalizeJobID(raw string) (string, string) {
	var reply NormalizeJobIDReply
	if err := r.cli.Call(rpcServiceName+".NormalizeJobID", NormalizeJobIDArgs{Raw: raw}, &reply); err != nil {
		return raw, ""
	}
	return reply.JobID, reply.ArrayID
}

func (r *remoteServer) NormalizeState(raw string) (State, error) {
	var reply NormalizeStateReply
	if err := r.cli.Call(rpcServiceName+".NormalizeState", NormalizeStateArgs{Raw: raw}, &reply); err != nil {
		return "", err
	}
	return reply.State, nil
}

func (r *remoteServer) QueueParser(filter QueueFilter) (*QueueIter, error) {
	var reply QueueParseReply
	if err := r.cli.Call(rpcServiceName+".QueueParse", QueueParseArgs{Filter: filter}, &reply); err != nil {
		return nil, err
	}
	return newSliceIter(reply.Jobs), nil
}

func (r *remoteServer) Submit(scriptPath string, dependencies []string) (SubmissionResult, error) {
	var reply SubmissionResult
	err := r.cli.Call(rpcServiceName+".Submit", SubmitArgs{
		ScriptPath:   scriptPath,
		Dependencies: dependencies,
	}, &reply)
	if err != nil {
		return SubmissionResult{}, err
	}
	return reply, nil
}

func (r *remoteServer) Kill(jobIDs []string) bool {
	var reply BoolReply
	if err := r.cli.Call(rpcServiceName+".Kill", KillArgs{JobIDs: jobIDs}, &reply); err != nil {
		return false
	}
	return reply.OK
}

func (r *remoteServer) Metrics(jobID string) ([][]string, error) {
	var reply MetricsReply
	if err := r.cli.Call(rpcServiceName+".Metrics", MetricsArgs{JobID: jobID}, &reply); err != nil {
		return nil, err
	}
	return reply.Rows, nil
}
