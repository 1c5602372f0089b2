package tle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ErrNoCache is returned by LoadLatest when the cache directory holds no
// TLE files.
var ErrNoCache = errors.New("no cached TLE files")

// Cache keeps the last few raw TLE downloads on disk so a restart can come up
// with elements before the first fetch completes. Files are named
// tle_<unix>.txt.
type Cache struct {
	dir      string
	maxFiles int
}

// NewCache creates a Cache that stores files in dir and keeps at most maxFiles.
func NewCache(dir string, maxFiles int) *Cache {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &Cache{
		dir:      dir,
		maxFiles: maxFiles,
	}
}

// Write saves data under ts and prunes files beyond maxFiles. The file is
// written to a temporary name first so LoadLatest never sees a partial file.
func (c *Cache) Write(data []byte, ts time.Time) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	path := filepath.Join(c.dir, fmt.Sprintf("tle_%d.txt", ts.Unix()))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming cache file: %w", err)
	}

	return c.prune()
}

// LoadLatest reads the newest cache file and returns its data and timestamp.
func (c *Cache) LoadLatest() ([]byte, time.Time, error) {
	files, err := c.listFiles()
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(files) == 0 {
		return nil, time.Time{}, ErrNoCache
	}

	latest := files[len(files)-1]
	data, err := os.ReadFile(filepath.Join(c.dir, latest.name))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading cache file: %w", err)
	}
	return data, latest.ts, nil
}

type cacheFile struct {
	name string
	ts   time.Time
}

// listFiles returns cache files sorted oldest first.
func (c *Cache) listFiles() ([]cacheFile, error) {
	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	var files []cacheFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		stamp, ok := strings.CutPrefix(e.Name(), "tle_")
		if !ok {
			continue
		}
		stamp, ok = strings.CutSuffix(stamp, ".txt")
		if !ok {
			continue
		}
		unix, err := strconv.ParseInt(stamp, 10, 64)
		if err != nil {
			continue
		}
		files = append(files, cacheFile{name: e.Name(), ts: time.Unix(unix, 0)})
	}

	slices.SortFunc(files, func(a, b cacheFile) int {
		return a.ts.Compare(b.ts)
	})
	return files, nil
}

func (c *Cache) prune() error {
	files, err := c.listFiles()
	if err != nil {
		return err
	}

	for len(files) > c.maxFiles {
		if err := os.Remove(filepath.Join(c.dir, files[0].name)); err != nil {
			return fmt.Errorf("pruning cache file %s: %w", files[0].name, err)
		}
		files = files[1:]
	}
	return nil
}
