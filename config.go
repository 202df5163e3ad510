package aiopipe

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
)

// Config contains options for pipes and their endpoints.
// A nil *Config is valid and means defaults.
type Config struct {
	// Logs are written here. It's set to a stderr logger if nil.
	Logger *log.Logger

	// Sets the verbosity of the log.
	// Logs are not written if it's 0; 1 logs lifecycle events and
	// swallowed close errors, 2 traces every wait.
	// It can be overridden with environment variable verboseaiopipe.
	LogLevel int

	// Notifier parks goroutines until a descriptor is ready.
	// A process-wide PollNotifier is used if nil.
	Notifier Notifier
}

var (
	defaultNotifierOnce sync.Once
	defaultNotifier     Notifier
)

// init returns a copy of cfg with defaults filled in, so the caller's
// Config is never mutated and may be shared between pipes.
func (cfg *Config) init() *Config {
	c := &Config{}
	if cfg != nil {
		*c = *cfg
	}
	if c.Logger == nil {
		c.Logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	if x := os.Getenv("verboseaiopipe"); x != "" {
		n, err := strconv.Atoi(x)
		if err == nil {
			if n != c.LogLevel && n > 0 {
				fmt.Fprintf(os.Stderr, "verboseaiopipe %s => %d\n", x, n)
			}
			c.LogLevel = n
		}
	}
	if c.Notifier == nil {
		defaultNotifierOnce.Do(func() {
			n, err := NewPollNotifier()
			if err != nil {
				c.Logger.Printf("aiopipe: default notifier: %v", err)
				defaultNotifier = failedNotifier{err}
				return
			}
			defaultNotifier = n
		})
		c.Notifier = defaultNotifier
	}
	return c
}

func (cfg *Config) log(format string, a ...interface{}) {
	if cfg.LogLevel > 0 {
		cfg.Logger.Printf(format, a...)
	}
}

func (cfg *Config) log2(format string, a ...interface{}) {
	if cfg.LogLevel > 1 {
		cfg.Logger.Printf(format, a...)
	}
}
