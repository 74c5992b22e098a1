// Command invoicectl runs the invoice engine's pure operations from a shell:
// amount-in-words, GST quotes and decoding of stored record text.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"invoicecore/internal/config"
	"invoicecore/internal/logger"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logCfg := logger.DefaultConfig()
	logCfg.Level, logCfg.Format, logCfg.Output = cfg.LogLevel, cfg.LogFormat, "stderr"
	if err := logger.Setup(logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log configuration: %v\n", err)
		os.Exit(1)
	}

	if err := newRootCmd(cfg).Execute(); err != nil {
		log := logger.WithComponent("cmd")
		log.Error().Err(err).Msg("command execution failed")
		os.Exit(1)
	}
}
