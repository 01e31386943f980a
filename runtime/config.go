package runtime

import (
	"github.com/caarlos0/env/v6"
)

// Config holds settings loaded from the environment. Only HistorySize
// takes effect (the REPL reads it); MaxFrames and MaxStackSize are
// loaded but not passed to the VM, which always runs with its fixed
// vm.MaxFrames and vm.StackSize limits.
type Config struct {
	// MaxFrames bounds call-stack depth (vm.MaxFrames default).
	MaxFrames int `env:"EMBER_MAX_FRAMES" envDefault:"1024"`

	// MaxStackSize bounds the operand-stack depth (vm.StackSize default).
	MaxStackSize int `env:"EMBER_MAX_STACK" envDefault:"2048"`

	// HistorySize bounds how many REPL entries repl.go keeps around.
	HistorySize int `env:"EMBER_HISTORY_SIZE" envDefault:"100"`
}

// LoadConfig returns Config's defaults overlaid with whatever EMBER_*
// environment variables are present. A missing variable is not an
// error; only a malformed one is.
func LoadConfig() (Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
