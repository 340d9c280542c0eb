// Package report renders search results two ways: a fixed-width console
// table per round, and one YAML artifact per leaderboard rank that is
// overwritten as the ranking evolves.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/serverscout/serverscout/internal/constants"
	"github.com/serverscout/serverscout/internal/fileutils"
	"github.com/serverscout/serverscout/internal/search"
	"gopkg.in/yaml.v3"
)

// artifact is the document written per rank: the leaderboard entry plus
// enough context to tell which run and round produced it.
type artifact struct {
	Run   string `yaml:"run"`
	Round int    `yaml:"round"`

	search.Entry `yaml:",inline"`
}

type options struct {
	console io.Writer
}

// Options is the variadic options available to New.
type Options func(*options)

// WithConsole redirects the round tables, which go to stderr by default so
// they never mix with redirected data output.
func WithConsole(w io.Writer) Options {
	return func(o *options) {
		o.console = w
	}
}

// Writer renders each round's leaderboard to the console and mirrors it
// into per-rank YAML artifacts under one directory.
type Writer struct {
	dir     string
	run     string
	console io.Writer

	log *slog.Logger
}

// New returns a Writer storing artifacts under dir, creating it as needed.
// run tags every artifact with the identifier of the producing search run.
func New(l *slog.Logger, dir, run string, args ...Options) (*Writer, error) {
	l.Debug("Creating new report writer", "dir", dir, "run", run)

	if dir == "" {
		return nil, errors.New("artifacts directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("could not create the artifacts directory: %v", err)
	}

	opts := options{
		console: os.Stderr,
	}
	for _, opt := range args {
		opt(&opts)
	}

	return &Writer{
		dir:     dir,
		run:     run,
		console: opts.console,
		log:     l,
	}, nil
}

// WriteRound renders one round's leaderboard, worst entry first. A console
// failure is returned to the caller; artifact trouble is logged and the
// remaining artifacts are still attempted, so a full disk never stops a
// search.
func (w *Writer) WriteRound(round int, entries []search.Entry) error {
	if err := w.writeConsole(entries); err != nil {
		return fmt.Errorf("could not write the round table: %v", err)
	}
	w.writeArtifacts(round, entries)
	return nil
}

// writeConsole renders the round separator and one line per entry, buffered
// so each round reaches the console in a single write.
func (w *Writer) writeConsole(entries []search.Entry) error {
	var buf bytes.Buffer
	buf.WriteString("---\n")
	for _, e := range entries {
		fmt.Fprintf(&buf, "%3d | %4dC / %4dT | %9.2f base GFLOPS | %9.2f turbo GFLOPS | %8.2f GiB | $%10.2f | %10.6f base | %10.6f turbo\n",
			e.Rank, e.Cores, e.Threads, e.BaseGflops, e.TurboGflops,
			float64(e.Memory)/(1<<30), e.Price, e.BaseRatio, e.TurboRatio)
	}

	_, err := w.console.Write(buf.Bytes())
	return err
}

func (w *Writer) writeArtifacts(round int, entries []search.Entry) {
	for _, e := range entries {
		data, err := yaml.Marshal(artifact{Run: w.run, Round: round, Entry: e})
		if err != nil {
			w.log.Error("Could not render a report artifact", "rank", e.Rank, "err", err)
			continue
		}

		path := w.rankPath(e.Rank)
		if err := fileutils.AtomicWrite(path, data); err != nil {
			w.log.Error("Could not write a report artifact", "path", path, "err", err)
		}
	}

	w.cleanup(len(entries))
}

// cleanup removes artifacts for ranks this round did not reach, left over
// from a previous run against a richer catalog. Files that do not look like
// rank artifacts are left alone.
func (w *Writer) cleanup(count int) {
	dirents, err := os.ReadDir(w.dir)
	if err != nil {
		w.log.Warn("Could not scan the artifacts directory", "dir", w.dir, "err", err)
		return
	}

	for _, de := range dirents {
		rank, ok := parseRankName(de.Name())
		if !ok || rank < count {
			continue
		}
		path := filepath.Join(w.dir, de.Name())
		if err := os.Remove(path); err != nil {
			w.log.Error("Could not remove a stale report artifact", "path", path, "err", err)
		}
	}
}

func (w *Writer) rankPath(rank int) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s%03d%s", constants.ReportFilePrefix, rank, constants.ReportExt))
}

// parseRankName extracts the rank from an artifact file name such as
// best-007.yaml.
func parseRankName(name string) (rank int, ok bool) {
	digits, found := strings.CutPrefix(name, constants.ReportFilePrefix)
	if !found {
		return 0, false
	}
	digits, found = strings.CutSuffix(digits, constants.ReportExt)
	if !found {
		return 0, false
	}

	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
