package batch

import (
	"os/exec"
	"sync"

	"go.uber.org/zap"
)

const (
	localityLocal  = "local"
	localityRemote = "remote"
)

// Registry creates and caches backend client instances. At most one live
// client exists per (locality, backend type); requesting a cached type with
// a different URI releases the stale instance first. The registry is the
// only writer to the cache.
type Registry struct {
	deps     Deps
	lookPath func(string) (string, error)

	mu      sync.Mutex
	clients map[string]map[string]*Client
	mode    string // detected cluster environment, "" until computed
}

// NewRegistry builds a registry with empty caches and no detected
// environment.
func NewRegistry(d Deps) *Registry {
	return &Registry{
		deps:     d.withDefaults(),
		lookPath: exec.LookPath,
		clients: map[string]map[string]*Client{
			localityLocal:  {},
			localityRemote: {},
		},
	}
}

// GetBatchSystem returns a client for the requested backend, creating and
// caching one when needed. An empty qtype is resolved by auto-detection;
// qtype "auto" with a remote URI asks the far side what it fronts.
func (r *Registry) GetBatchSystem(qtype string, remote bool, uri string) (*Client, error) {
	if qtype == "" {
		qtype = r.GetClusterEnvironment(false)
	}
	if !DefinedSystem(qtype) {
		return nil, NewUnknownQueueError(qtype)
	}

	if qtype == QTypeAuto {
		if !remote || uri == "" {
			return nil, ErrNoRemoteURI
		}
		detected, err := probeRemoteQType(uri)
		if err != nil {
			return nil, err
		}
		r.deps.Log.Debug("remote server reported its backend type",
			zap.String("qtype", detected), zap.String("uri", uri))
		qtype = detected
		r.setMode(detected)
	}

	locality := localityLocal
	if remote {
		locality = localityRemote
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.clients[locality][qtype]; ok {
		if uri == "" || uri == cached.URI() {
			return cached, nil
		}
		cached.Release()
		delete(r.clients[locality], qtype)
	}

	client, err := newClient(qtype, remote, uri, r.deps)
	if err != nil {
		return nil, err
	}
	r.clients[locality][qtype] = client
	return client, nil
}

// GetBatchClasses returns the constructors for the requested backend
// without instantiating or caching anything.
func (r *Registry) GetBatchClasses(qtype string) (Classes, error) {
	if qtype == "" {
		qtype = r.GetClusterEnvironment(false)
	}
	if !DefinedSystem(qtype) || qtype == QTypeAuto {
		return Classes{}, NewUnknownQueueError(qtype)
	}
	return defaultBatches[qtype], nil
}

// CheckQueue verifies that both the detected environment and the requested
// qtype are valid, then runs the backend's functionality test.
func (r *Registry) CheckQueue(qtype string, remote bool, uri string) (bool, error) {
	mode := r.GetClusterEnvironment(false)
	if !DefinedSystem(mode) {
		return false, NewUnknownQueueError(mode)
	}
	if qtype != "" && !DefinedSystem(qtype) {
		return false, NewUnknownQueueError(qtype)
	}
	if qtype == "" {
		qtype = mode
	}
	client, err := r.GetBatchSystem(qtype, remote, uri)
	if err != nil {
		return false, err
	}
	return client.QueueTest(true), nil
}

// ReleaseAll drops every cached client. Mainly useful in tests and at
// shutdown.
func (r *Registry) ReleaseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for locality, byType := range r.clients {
		for qtype, client := range byType {
			client.Release()
			delete(r.clients[locality], qtype)
		}
	}
}

func (r *Registry) setMode(mode string) {
	r.mu.Lock()
	r.mode = mode
	r.mu.Unlock()
}
