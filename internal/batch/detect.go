package batch

import (
	"go.uber.org/zap"
)

// detectOrder is the fixed backend probe priority. Order matters: the first
// submit tool found on the search path wins.
var detectOrder = []struct {
	tool  string
	qtype string
}{
	{"sbatch", QTypeSlurm},
	{"qsub", QTypeTorque},
	{"bsub", QTypeLSF},
}

// GetClusterEnvironment resolves which backend to use when none is
// specified. The result is cached on the registry; force recomputes it.
// Detection never fails: with no scheduler tools on the path it resolves to
// the local fallback, and the caller decides whether that is acceptable.
func (r *Registry) GetClusterEnvironment(force bool) string {
	r.mu.Lock()
	if !force && r.mode != "" && DefinedSystem(r.mode) {
		mode := r.mode
		r.mu.Unlock()
		return mode
	}
	r.mu.Unlock()

	conf := r.deps.Conf
	log := r.deps.Log

	confQueue := conf.QueueType()
	if !DefinedSystem(confQueue) {
		log.Warn("configured queue_type is not recognized, resetting to auto",
			zap.String("queue_type", confQueue))
		conf.SetQueueType(QTypeAuto)
		confQueue = QTypeAuto
	}

	mode := confQueue
	if confQueue == QTypeAuto {
		mode = QTypeLocal
		for _, probe := range detectOrder {
			if _, err := r.lookPath(conf.Tool(probe.tool)); err == nil {
				mode = probe.qtype
				break
			}
		}
	}

	if mode == QTypeLocal {
		log.Info("no cluster environment detected, using local multiprocessing")
	} else {
		log.Debug("batch system detected, using for cluster submissions",
			zap.String("qtype", mode))
	}

	r.setMode(mode)
	return mode
}
