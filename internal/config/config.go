// Package config provides the key/value option store consumed by the batch
// system layer. Options come from a config file, FYRD_* environment
// variables, or defaults, in that priority order.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	ConfigFilename = "fyrd"
	ConfigType     = "yaml"
)

// Provider wraps a viper instance so tests can run against an isolated
// store instead of the process-global one.
type Provider struct {
	v *viper.Viper
}

// New returns a Provider populated with defaults only.
func New() *Provider {
	v := viper.New()
	setDefaults(v)
	return &Provider{v: v}
}

// Load returns a Provider that reads the config file and environment on top
// of the defaults. A missing config file is not an error.
func Load() (*Provider, error) {
	v := viper.New()
	v.SetConfigName(ConfigFilename)
	v.SetConfigType(ConfigType)

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".fyrd"))
	}
	v.AddConfigPath("/etc/fyrd")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FYRD")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return &Provider{v: v}, err
		}
	}
	return &Provider{v: v}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("queue.queue_type", "auto")
	v.SetDefault("queue.server_uri", "")

	// Scheduler tool paths. Empty means "use the bare name from PATH".
	for _, tool := range []string{
		"sbatch", "squeue", "sacct", "scancel",
		"qsub", "qstat", "qdel",
		"bsub", "bjobs", "bkill",
	} {
		v.SetDefault("queue."+tool, "")
	}

	v.SetDefault("local.pool_size", 0) // 0 = NumCPU
	v.SetDefault("log.level", "info")
}

// QueueType returns the configured backend type ("auto" when unset).
func (p *Provider) QueueType() string {
	return p.v.GetString("queue.queue_type")
}

// SetQueueType overwrites the configured backend type. Used to correct an
// invalid value back to "auto".
func (p *Provider) SetQueueType(qtype string) {
	p.v.Set("queue.queue_type", qtype)
}

// Tool returns the configured path for a scheduler command, or the bare
// command name when no override is set.
func (p *Provider) Tool(name string) string {
	if path := p.v.GetString("queue." + name); path != "" {
		return path
	}
	return name
}

// SetTool overrides the path for a scheduler command.
func (p *Provider) SetTool(name, path string) {
	p.v.Set("queue."+name, path)
}

// ServerURI returns the configured remote batch server address.
func (p *Provider) ServerURI() string {
	return p.v.GetString("queue.server_uri")
}

// LocalPoolSize returns the configured worker count for the local backend
// (0 means one worker per CPU).
func (p *Provider) LocalPoolSize() int {
	return p.v.GetInt("local.pool_size")
}

// LogLevel returns the configured log level name.
func (p *Provider) LogLevel() string {
	return p.v.GetString("log.level")
}

// GetString exposes raw access for callers outside the queue namespace.
func (p *Provider) GetString(key string) string {
	return p.v.GetString(key)
}

// Set exposes raw write access.
func (p *Provider) Set(key string, value interface{}) {
	p.v.Set(key, value)
}
