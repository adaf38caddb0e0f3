// Package store picks a persistence backend by name.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/warp/libris/library"
	"github.com/warp/libris/store/file"
	"github.com/warp/libris/store/pebble"
	"github.com/warp/libris/store/sqlite"
)

// Backend names accepted by Open.
const (
	File   = "file"
	SQLite = "sqlite"
	Pebble = "pebble"
)

// Names lists every backend Open understands.
var Names = []string{File, SQLite, Pebble}

// Valid reports whether name is a known backend.
func Valid(name string) bool {
	for _, n := range Names {
		if n == strings.ToLower(name) {
			return true
		}
	}
	return false
}

// Open opens the named backend inside dataDir, creating the directory.
//
//	file    dataDir/libris.json + dataDir/admin.json
//	sqlite  dataDir/libris.db
//	pebble  dataDir/pebble/
func Open(name, dataDir string, logger *zap.Logger) (library.Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dataDir, err)
	}

	var (
		b   library.Backend
		err error
	)
	switch strings.ToLower(name) {
	case File, "":
		b, err = file.New(dataDir, file.WithLogger(logger))
	case SQLite:
		b, err = sqlite.New(filepath.Join(dataDir, "libris.db"))
	case Pebble:
		b, err = pebble.Open(filepath.Join(dataDir, "pebble"), pebble.WithLogger(logger))
	default:
		return nil, fmt.Errorf("unknown backend %q (want one of %s)", name, strings.Join(Names, ", "))
	}
	if err != nil {
		return nil, err
	}
	logger.Info("storage opened", zap.String("backend", name), zap.String("data_dir", dataDir))
	return b, nil
}
