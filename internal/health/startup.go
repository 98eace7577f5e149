// SPDX-License-Identifier: MIT

package health

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/quantfleet/atrwac/internal/log"
)

// StartupConfig holds the environment facts validated before the daemon
// begins serving.
type StartupConfig struct {
	ListenAddr string
	DataDir    string // empty disables persistence checks
}

// PerformStartupChecks validates the environment before starting the server.
func PerformStartupChecks(cfg StartupConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := checkListenAddr(logger, cfg.ListenAddr); err != nil {
		return fmt.Errorf("listen address check failed: %w", err)
	}
	if cfg.DataDir != "" {
		if err := checkDataDir(logger, cfg.DataDir); err != nil {
			return fmt.Errorf("data directory check failed: %w", err)
		}
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkListenAddr(logger zerolog.Logger, addr string) error {
	if addr == "" {
		return fmt.Errorf("listen address is empty")
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		return fmt.Errorf("invalid listen port %q in %q", port, addr)
	}
	logger.Info().Str("addr", addr).Msg("listen address is valid")
	return nil
}

func checkDataDir(logger zerolog.Logger, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(path, 0o750); err != nil {
				return fmt.Errorf("cannot create data directory %s: %w", path, err)
			}
			logger.Info().Str("path", path).Msg("data directory created")
		} else {
			return err
		}
	} else if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	// Write permission is verified with a probe file.
	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("path", path).Msg("data directory is writable")
	return nil
}
