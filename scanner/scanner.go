package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"sync"

	"github.com/boyter/gocodewalker"
	"github.com/rlch/schemadrift"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Scanner walks source trees and extracts AccessEvents.
type Scanner struct {
	extensions []string
	skipDirs   []string
	receivers  []string
	workers    int
	logger     *zap.Logger

	property *regexp.Regexp
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithExtensions limits scanned files to the given extensions (without dot).
func WithExtensions(exts ...string) Option {
	return func(s *Scanner) {
		if len(exts) > 0 {
			s.extensions = exts
		}
	}
}

// WithSkipDirs replaces the directory names that are never descended into.
func WithSkipDirs(dirs ...string) Option {
	return func(s *Scanner) {
		if len(dirs) > 0 {
			s.skipDirs = dirs
		}
	}
}

// WithReceivers replaces the variable names checked for property access.
func WithReceivers(names ...string) Option {
	return func(s *Scanner) {
		if len(names) > 0 {
			s.receivers = names
		}
	}
}

// WithWorkers bounds concurrent file reads. Values below 1 use GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		s.workers = n
	}
}

// WithLogger sets the logger used for skipped-file warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Scanner with the default extensions, skip dirs, and receivers.
func New(opts ...Option) *Scanner {
	s := &Scanner{
		extensions: schemadrift.DefaultExtensions,
		skipDirs:   schemadrift.DefaultSkipDirs,
		receivers:  schemadrift.DefaultReceivers,
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.workers < 1 {
		s.workers = runtime.GOMAXPROCS(0)
	}

	s.property = propertyPattern(s.receivers)

	return s
}

// fileResult is one file's slot in the parallel scan.
type fileResult struct {
	events  []AccessEvent
	skipped bool
}

// Scan walks root and scans every matching file. Unreadable files are logged
// and listed in Result.Skipped; they never abort the scan.
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("source root %s: %w", root, schemadrift.ErrNotFound)
		}

		return nil, err
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("source root %s: not a directory", root)
	}

	files, err := s.discover(root)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Discovered source files",
		zap.String("root", root),
		zap.Int("files", len(files)))

	results := make([]fileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, rel := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
			if err != nil {
				s.logger.Warn("Skipping unreadable file",
					zap.String("file", rel),
					zap.Error(err))

				results[i] = fileResult{skipped: true}

				return nil
			}

			results[i] = fileResult{events: s.ScanSource(rel, string(data))}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{
		Root:   root,
		Files:  make([]string, 0, len(files)),
		Events: []AccessEvent{},
	}

	for i, r := range results {
		if r.skipped {
			result.Skipped = append(result.Skipped, files[i])

			continue
		}

		result.Files = append(result.Files, files[i])
		result.Events = append(result.Events, r.events...)
	}

	sortEvents(result.Events)

	return result, nil
}

// discover lists matching files relative to root, slash-separated and sorted.
// gocodewalker honours .gitignore and .ignore files.
func (s *Scanner) discover(root string) ([]string, error) {
	queue := make(chan *gocodewalker.File, 100)

	walker := gocodewalker.NewFileWalker(root, queue)
	walker.AllowListExtensions = s.extensions
	walker.ExcludeDirectory = s.skipDirs

	var (
		walkErr error
		mu      sync.Mutex
	)

	walker.SetErrorHandler(func(e error) bool {
		s.logger.Warn("Walk error", zap.Error(e))

		mu.Lock()
		if walkErr == nil {
			walkErr = e
		}
		mu.Unlock()

		return true
	})

	var (
		files []string
		wg    sync.WaitGroup
	)

	wg.Add(1)

	go func() {
		defer wg.Done()

		for f := range queue {
			rel, err := filepath.Rel(root, f.Location)
			if err != nil {
				rel = f.Location
			}

			files = append(files, filepath.ToSlash(rel))
		}
	}()

	if err := walker.Start(); err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	wg.Wait()

	if walkErr != nil && len(files) == 0 {
		return nil, fmt.Errorf("walking %s: %w", root, walkErr)
	}

	sort.Strings(files)

	return files, nil
}
