// Package constants is responsible for defining the constants used in the application.
// It also provides utility functions to get the default configuration and catalog paths.
package constants

import (
	"log/slog"
	"os"
	"path/filepath"
)

var (
	// Version is the version of the application.
	Version = "Dev"
)

const (
	// CmdName is the name of the command line tool.
	CmdName = "serverscout"

	// DefaultAppFolder is the name of the default root folder.
	DefaultAppFolder = "serverscout"

	// DefaultLogLevel is the default log level selected without any verbosity flags.
	DefaultLogLevel = slog.LevelWarn

	// DefaultBatchSize is the number of candidate draws per search round.
	DefaultBatchSize = 100000

	// DefaultLeaderboardSize is the number of top-ranked systems retained after each round.
	DefaultLeaderboardSize = 50

	// DefaultMaxPrice is the feasibility ceiling on a candidate system's total price, in USD.
	DefaultMaxPrice = 35000.0

	// DefaultMinBytesPerThread is the feasibility floor on installed memory per hardware thread.
	DefaultMinBytesPerThread = 4 * 1024 * 1024 * 1024

	// DefaultWorkers is the number of concurrent sampling workers per search round.
	DefaultWorkers = 1

	// CatalogDirName is the name of the hardware catalog folder.
	CatalogDirName = "catalog"

	// ReportsDirName is the default name of the report artifacts folder.
	ReportsDirName = "reports"

	// ReportFilePrefix is the file name prefix of per-rank report artifacts.
	ReportFilePrefix = "best-"

	// ReportExt is the file extension of per-rank report artifacts.
	ReportExt = ".yaml"

	// PriceOverridesFileName is the name of the optional per-model price
	// overrides file looked up inside the catalog folder.
	PriceOverridesFileName = "prices.ini"
)

type options struct {
	baseDir func() (string, error)
}

type option func(*options)

// GetDefaultConfigPath is the default path to the configuration file.
func GetDefaultConfigPath(opts ...option) string {
	o := options{baseDir: os.UserConfigDir}
	for _, opt := range opts {
		opt(&o)
	}

	return filepath.Join(getBaseDir(o.baseDir), DefaultAppFolder)
}

// GetDefaultCatalogPath is the default path to the hardware catalog directory.
func GetDefaultCatalogPath(opts ...option) string {
	o := options{baseDir: os.UserConfigDir}
	for _, opt := range opts {
		opt(&o)
	}

	return filepath.Join(getBaseDir(o.baseDir), DefaultAppFolder, CatalogDirName)
}

// getBaseDir is a helper function to handle the case where the baseDir function returns an error, and instead return an empty string.
func getBaseDir(baseDirFunc func() (string, error)) string {
	dir, err := baseDirFunc()
	if err != nil {
		return ""
	}
	return dir
}
