// FileCache serves stylesheet sources to transforms from memory-mapped files.
//
// A build reads every stylesheet once for discovery-time checks and once
// more for the transform; a dev session re-reads files on every change.
// Mapping files keeps those reads cheap, and Invalidate drops a mapping
// when the watcher reports that the file changed on disk.
//
// If mmap fails the file is read with os.ReadFile instead.
package util

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
)

// FileCache is safe for concurrent use.
type FileCache interface {
	// ReadFile returns the contents of path, mapping it on first access.
	ReadFile(path string) (string, error)

	// Invalidate unmaps path so the next ReadFile sees the file on disk.
	Invalidate(path string)

	// Size returns the number of cached files.
	Size() int

	// Stats returns cache counters.
	Stats() FileCacheStats

	// Close unmaps every file.
	Close() error
}

// FileCacheConfig controls FileCache behavior.
type FileCacheConfig struct {
	// MaxFiles caps the number of mapped files. 0 means unlimited.
	// Past the cap files are still served, just not kept.
	MaxFiles int

	// Logger receives mmap fallbacks and close errors. nil uses slog.Default().
	Logger *slog.Logger
}

// DefaultFileCacheConfig covers projects with a few thousand stylesheets.
func DefaultFileCacheConfig() *FileCacheConfig {
	return &FileCacheConfig{MaxFiles: 4096}
}

// FileCacheStats tracks cache counters.
type FileCacheStats struct {
	Hits         int64
	Misses       int64
	MmapFailures int64
	Invalidated  int64
	FilesCached  int
}

type mappedFile struct {
	data mmap.MMap
	file *os.File
	// fallback holds the contents when mmap failed.
	fallback []byte
}

func (mf *mappedFile) bytes() []byte {
	if mf.fallback != nil {
		return mf.fallback
	}
	return mf.data
}

func (mf *mappedFile) close() error {
	var err error
	if mf.data != nil {
		err = mf.data.Unmap()
	}
	if mf.file != nil {
		if cerr := mf.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

type fileCache struct {
	config *FileCacheConfig
	logger *slog.Logger

	mu    sync.RWMutex
	files map[string]*mappedFile

	statsMu sync.Mutex
	stats   FileCacheStats
}

// NewFileCache creates a FileCache. A nil config uses DefaultFileCacheConfig.
func NewFileCache(config *FileCacheConfig) FileCache {
	if config == nil {
		config = DefaultFileCacheConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &fileCache{
		config: config,
		logger: logger,
		files:  make(map[string]*mappedFile),
	}
}

func (fc *fileCache) ReadFile(path string) (string, error) {
	fc.mu.RLock()
	if mf, ok := fc.files[path]; ok {
		s := string(mf.bytes())
		fc.mu.RUnlock()
		fc.count(func(s *FileCacheStats) { s.Hits++ })
		return s, nil
	}
	fc.mu.RUnlock()

	fc.count(func(s *FileCacheStats) { s.Misses++ })

	mf, err := fc.load(path)
	if err != nil {
		return "", err
	}
	s := string(mf.bytes())

	fc.mu.Lock()
	defer fc.mu.Unlock()
	if _, ok := fc.files[path]; ok || (fc.config.MaxFiles > 0 && len(fc.files) >= fc.config.MaxFiles) {
		// Lost a race or over the cap: serve without keeping.
		if err := mf.close(); err != nil {
			fc.logger.Warn("failed to release file", "path", path, "error", err)
		}
		return s, nil
	}
	fc.files[path] = mf
	return s, nil
}

func (fc *fileCache) load(path string) (*mappedFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	// Zero-length files cannot be mapped.
	if info.Size() == 0 {
		file.Close()
		return &mappedFile{fallback: []byte{}}, nil
	}

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		file.Close()
		fc.count(func(s *FileCacheStats) { s.MmapFailures++ })
		fc.logger.Warn("mmap failed, reading file instead", "path", path, "error", err)

		contents, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("read %s: %w", path, readErr)
		}
		return &mappedFile{fallback: contents}, nil
	}

	return &mappedFile{data: data, file: file}, nil
}

func (fc *fileCache) Invalidate(path string) {
	fc.mu.Lock()
	mf, ok := fc.files[path]
	delete(fc.files, path)
	fc.mu.Unlock()

	if !ok {
		return
	}
	fc.count(func(s *FileCacheStats) { s.Invalidated++ })
	if err := mf.close(); err != nil {
		fc.logger.Warn("failed to unmap file", "path", path, "error", err)
	}
}

func (fc *fileCache) Size() int {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return len(fc.files)
}

func (fc *fileCache) Stats() FileCacheStats {
	size := fc.Size()
	fc.statsMu.Lock()
	defer fc.statsMu.Unlock()
	stats := fc.stats
	stats.FilesCached = size
	return stats
}

func (fc *fileCache) Close() error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	var errs []error
	for path, mf := range fc.files {
		if err := mf.close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
	}
	fc.files = make(map[string]*mappedFile)

	fc.statsMu.Lock()
	stats := fc.stats
	fc.statsMu.Unlock()
	fc.logger.Debug("file cache closed",
		"hits", stats.Hits,
		"misses", stats.Misses,
		"mmap_failures", stats.MmapFailures)

	if len(errs) > 0 {
		return fmt.Errorf("close file cache: %v", errs)
	}
	return nil
}

func (fc *fileCache) count(update func(*FileCacheStats)) {
	fc.statsMu.Lock()
	update(&fc.stats)
	fc.statsMu.Unlock()
}
