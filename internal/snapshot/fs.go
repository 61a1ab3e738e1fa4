package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	domainerrors "github.com/cineshelfapp/cineshelf/internal/errors"
)

// FSRepository stores each snapshot as a JSON file in one directory.
//
// The directory listing is cached and an fsnotify watcher drops the cache whenever the
// directory changes, so files copied in by hand show up on the next request.
type FSRepository struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex // serializes writes
	cacheMu  sync.RWMutex
	cache    []BackupInfo
	cacheOK  bool
	cacheGen uint64
	watcher  *fsnotify.Watcher
	done     chan struct{}
	watching sync.WaitGroup
}

// NewFSRepository opens dir, creating it when absent.
func NewFSRepository(dir string, logger *slog.Logger) (*FSRepository, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}

	r := &FSRepository{
		dir:    dir,
		logger: logger,
		now:    time.Now,
		done:   make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		err = watcher.Add(dir)
		if err != nil {
			_ = watcher.Close()
		}
	}
	if err != nil {
		logger.Warn("snapshot dir watch unavailable, listing without cache", "dir", dir, "error", err)
		return r, nil
	}

	r.watcher = watcher
	r.watching.Add(1)
	go r.watch()

	logger.Info("snapshot repository opened", "backend", "fs", "dir", dir)
	return r, nil
}

// Close stops the directory watcher.
func (r *FSRepository) Close() error {
	if r.watcher == nil {
		return nil
	}
	close(r.done)
	err := r.watcher.Close()
	r.watching.Wait()
	return err
}

func (r *FSRepository) watch() {
	defer r.watching.Done()
	for {
		select {
		case <-r.done:
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename|fsnotify.Chmod) != 0 {
				r.invalidate()
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("snapshot dir watch error", "error", err)
			r.invalidate()
		}
	}
}

func (r *FSRepository) invalidate() {
	r.cacheMu.Lock()
	r.cacheOK = false
	r.cache = nil
	r.cacheGen++
	r.cacheMu.Unlock()
}

// Put writes doc to cineshelf_backup_<identifier>.json through a temporary file.
func (r *FSRepository) Put(ctx context.Context, identifier string, doc *Document) (*PutResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id, err := Sanitize(identifier)
	if err != nil {
		return nil, err
	}

	now := r.now()
	annotate(doc, id, now)

	var buf bytes.Buffer
	if err := doc.Encode(&buf); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := Filename(id)
	tmp, err := os.CreateTemp(r.dir, "."+name+".*")
	if err != nil {
		return nil, fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return nil, fmt.Errorf("chmod snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(r.dir, name)); err != nil {
		return nil, fmt.Errorf("store snapshot: %w", err)
	}
	r.invalidate()

	r.logger.Info("snapshot stored", "user", id, "file", name, "bytes", buf.Len())
	return &PutResult{Filename: name, User: id, Timestamp: now}, nil
}

// Get implements Repository.
func (r *FSRepository) Get(ctx context.Context, identifier, exactKey string) (*Lookup, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id, err := Sanitize(identifier)
	if err != nil {
		return nil, err
	}

	if exactKey != "" {
		name, err := exactBlobName(exactKey)
		if err != nil {
			return nil, err
		}
		doc, err := r.read(name)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domainerrors.NotFoundf("backup file %q not found", exactKey).
				WithDetails(map[string]string{"file": exactKey})
		}
		if err != nil {
			return nil, err
		}
		doc.RestoreMetadata = restoreMetadata(name, id, true, r.now())
		return &Lookup{Document: doc, Filename: name}, nil
	}

	infos, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	info, ok := selectBlob(infos, id)
	if !ok {
		return &Lookup{Available: infos}, nil
	}

	doc, err := r.read(info.Filename)
	if err != nil {
		return nil, err
	}
	doc.RestoreMetadata = restoreMetadata(info.Filename, id, false, r.now())
	return &Lookup{Document: doc, Filename: info.Filename}, nil
}

// List implements Repository.
func (r *FSRepository) List(ctx context.Context) ([]BackupInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var gen uint64
	if r.watcher != nil {
		r.cacheMu.RLock()
		if r.cacheOK {
			out := append([]BackupInfo(nil), r.cache...)
			r.cacheMu.RUnlock()
			return out, nil
		}
		gen = r.cacheGen
		r.cacheMu.RUnlock()
	}

	infos, err := r.scan()
	if err != nil {
		return nil, err
	}

	if r.watcher != nil {
		r.cacheMu.Lock()
		// A change during the scan makes the result stale.
		if gen == r.cacheGen {
			r.cache = append([]BackupInfo(nil), infos...)
			r.cacheOK = true
		}
		r.cacheMu.Unlock()
	}
	return infos, nil
}

func (r *FSRepository) scan() ([]BackupInfo, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read snapshot dir: %w", err)
	}

	infos := make([]BackupInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		user := UserPart(e.Name())
		if user == "" {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		infos = append(infos, BackupInfo{
			Filename: e.Name(),
			UserPart: user,
			Modified: fi.ModTime(),
			Size:     fi.Size(),
		})
	}
	sortNewestFirst(infos)
	return infos, nil
}

func (r *FSRepository) read(name string) (*Document, error) {
	data, err := os.ReadFile(filepath.Join(r.dir, name))
	if err != nil {
		return nil, err
	}
	doc, err := DecodeBytes(data)
	if err != nil {
		return nil, corrupt(name, err)
	}
	return doc, nil
}
