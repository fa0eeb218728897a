package batch

import (
	"net/rpc"

	"go.uber.org/zap"
)

// Client is the cheap facade callers hold: a thin value around a Server
// reference that may live in-process or behind the RPC boundary. The
// expensive resource is the Server (and its connection), which the registry
// caches; clients only delegate.
type Client struct {
	qtype     string
	remote    bool
	uri       string
	server    Server
	ops       clientOps
	rpc       *rpc.Client
	log       *zap.Logger
	connected bool
}

// Classes bundles the constructors for one backend, for callers that need
// the classes rather than a live instance.
type Classes struct {
	// NewServer builds the in-process server implementation.
	NewServer func(Deps) Server
	// NewClient builds a client (local mode: with an in-process server;
	// remote mode: connected to uri).
	NewClient func(remote bool, uri string, d Deps) (*Client, error)
}

// defaultBatches is populated in init: the NewClient closures call back into
// newClient, which consults this map, so a var initializer would be an
// initialization cycle.
var defaultBatches map[string]Classes

func init() {
	defaultBatches = map[string]Classes{
		QTypeSlurm: {
			NewServer: func(d Deps) Server { return NewSlurmServer(d) },
			NewClient: func(remote bool, uri string, d Deps) (*Client, error) {
				return newClient(QTypeSlurm, remote, uri, d)
			},
		},
		QTypeTorque: {
			NewServer: func(d Deps) Server { return NewTorqueServer(d) },
			NewClient: func(remote bool, uri string, d Deps) (*Client, error) {
				return newClient(QTypeTorque, remote, uri, d)
			},
		},
		QTypeLSF: {
			NewServer: func(d Deps) Server { return NewLSFServer(d) },
			NewClient: func(remote bool, uri string, d Deps) (*Client, error) {
				return newClient(QTypeLSF, remote, uri, d)
			},
		},
		QTypeLocal: {
			NewServer: func(d Deps) Server { return NewLocalServer(d) },
			NewClient: func(remote bool, uri string, d Deps) (*Client, error) {
				return newClient(QTypeLocal, remote, uri, d)
			},
		},
	}
}

// newClient builds a client for one backend type. Local clients get their
// own in-process server; remote clients dial the server at uri and fail
// with ErrNotConnected when it is unreachable.
func newClient(qtype string, remote bool, uri string, d Deps) (*Client, error) {
	d = d.withDefaults()

	classes, ok := defaultBatches[qtype]
	if !ok {
		return nil, NewUnknownQueueError(qtype)
	}

	c := &Client{
		qtype:  qtype,
		remote: remote,
		uri:    uri,
		log:    d.Log,
	}

	// The client-side operations (strange-option parsing, script
	// generation) are pure text transforms, so a locally constructed
	// backend value serves them even in remote mode.
	local := classes.NewServer(d)
	ops, ok := local.(clientOps)
	if !ok {
		return nil, NewNotImplementedError(qtype, "client operations")
	}
	c.ops = ops

	if remote {
		rpcCli, err := Dial(uri)
		if err != nil {
			return nil, err
		}
		c.rpc = rpcCli
		c.server = &remoteServer{cli: rpcCli, name: qtype}
		c.connected = true
		return c, nil
	}

	c.server = local
	c.connected = true
	return c, nil
}

// QType returns the backend type tag.
func (c *Client) QType() string { return c.qtype }

// Remote reports whether the server side lives behind the RPC boundary.
func (c *Client) Remote() bool { return c.remote }

// URI returns the remote server address (empty for local clients).
func (c *Client) URI() string { return c.uri }

// Connected reports whether the server side is usable.
func (c *Client) Connected() bool { return c.connected }

// Release drops the server connection. Local in-process servers are shut
// down if they support it. A released client must not be reused.
func (c *Client) Release() {
	if !c.connected {
		return
	}
	c.connected = false
	if c.rpc != nil {
		if err := c.rpc.Close(); err != nil {
			c.log.Debug("error closing batch server connection", zap.Error(err))
		}
		c.rpc = nil
		return
	}
	if s, ok := c.server.(interface{ Shutdown() }); ok {
		s.Shutdown()
	}
}

// QueueTest delegates the functionality test to the server side.
func (c *Client) QueueTest(warn bool) bool {
	if !c.connected {
		return false
	}
	return c.server.QueueTest(warn)
}

// NormalizeJobID splits a composite job id. Runs locally: it is pure text.
func (c *Client) NormalizeJobID(raw string) (string, string) {
	return c.server.NormalizeJobID(raw)
}

// NormalizeState maps a native state onto the canonical vocabulary.
func (c *Client) NormalizeState(raw string) (State, error) {
	return c.server.NormalizeState(raw)
}

// QueueParser runs the queue reconciler on the server side.
func (c *Client) QueueParser(filter QueueFilter) (*QueueIter, error) {
	if !c.connected {
		return nil, ErrNotConnected
	}
	return c.server.QueueParser(filter)
}

// Submit submits a script with optional dependencies on the server side.
func (c *Client) Submit(scriptPath string, dependencies []string) (SubmissionResult, error) {
	if !c.connected {
		return SubmissionResult{}, ErrNotConnected
	}
	return c.server.Submit(scriptPath, dependencies)
}

// Kill requests cancellation on the server side.
func (c *Client) Kill(jobIDs []string) bool {
	if !c.connected {
		return false
	}
	return c.server.Kill(jobIDs)
}

// Metrics fetches raw accounting rows from the server side.
func (c *Client) Metrics(jobID string) ([][]string, error) {
	if !c.connected {
		return nil, ErrNotConnected
	}
	return c.server.Metrics(jobID)
}

// ParseStrangeOptions translates backend-specific options client-side.
func (c *Client) ParseStrangeOptions(opts map[string]string) ([]string, map[string]string, []string) {
	return c.ops.ParseStrangeOptions(opts)
}

// GenScripts builds the submission (and optional execution) script
// client-side.
func (c *Client) GenScripts(job *JobInfo, command string, args []string, precmd, modstr string) (*Script, *Script, error) {
	return c.ops.GenScripts(job, command, args, precmd, modstr)
}
