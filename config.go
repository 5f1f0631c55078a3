package uasd

import "flag"

// Default configuration values per spec.md §6 and §5.
const (
	DefaultListenAddr  = ":5060"
	DefaultAdminAddr   = ":9090"
	DefaultWorkerCount = 5
)

// Config is the server's configuration surface: worker count, queue
// capacity, listening port, and admin HTTP address. spec.md §6 leaves
// the mechanism unspecified ("no CLI, no environment variables, no
// config file in the source"); this reimplementation exposes it via
// the stdlib flag package, grounded on the teacher's own
// cmd/proxysip/main.go flag handling rather than a third-party CLI
// framework — the teacher uses flag directly for its example binaries.
type Config struct {
	ListenAddr    string
	AdminAddr     string
	WorkerCount   int
	QueueCapacity int
}

// DefaultConfig returns the spec's defaults: port 5060, 5 workers,
// queue capacity 10 (queue.DefaultCapacity).
func DefaultConfig() Config {
	return Config{
		ListenAddr:    DefaultListenAddr,
		AdminAddr:     DefaultAdminAddr,
		WorkerCount:   DefaultWorkerCount,
		QueueCapacity: 10,
	}
}

// ParseFlags populates a Config from command-line flags, starting
// from DefaultConfig's values.
func ParseFlags(args []string) (Config, error) {
	cfg := DefaultConfig()
	fs := flag.NewFlagSet("sipuasd", flag.ContinueOnError)
	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "UDP address to listen on")
	fs.StringVar(&cfg.AdminAddr, "admin", cfg.AdminAddr, "HTTP address for metrics and health")
	fs.IntVar(&cfg.WorkerCount, "workers", cfg.WorkerCount, "number of worker goroutines")
	fs.IntVar(&cfg.QueueCapacity, "queue-capacity", cfg.QueueCapacity, "per-worker bounded queue capacity")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
