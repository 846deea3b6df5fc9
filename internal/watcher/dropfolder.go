package watcher

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// IndexFunc indexes the file at path and returns its document handle.
type IndexFunc func(ctx context.Context, path string) (string, error)

// RemoveFunc removes the document registered under handle.
type RemoveFunc func(ctx context.Context, handle string) error

// DropFolder keeps one document per watched file: rewriting a file replaces its
// previous document and deleting it removes the document.
type DropFolder struct {
	index  IndexFunc
	remove RemoveFunc
	logger *zap.Logger

	mu      sync.Mutex
	handles map[string]string
}

// NewDropFolder creates a drop folder. logger may be nil.
func NewDropFolder(index IndexFunc, remove RemoveFunc, logger *zap.Logger) *DropFolder {
	return &DropFolder{
		index:   index,
		remove:  remove,
		logger:  logger,
		handles: make(map[string]string),
	}
}

// Index indexes path and retires the document previously built from it.
// On failure the previous document stays in place.
func (d *DropFolder) Index(ctx context.Context, path string) {
	handle, err := d.index(ctx, path)
	if err != nil {
		if d.logger != nil {
			d.logger.Warn("failed to index watched file", zap.String("path", path), zap.Error(err))
		}
		return
	}

	d.mu.Lock()
	old, replaced := d.handles[path]
	d.handles[path] = handle
	d.mu.Unlock()

	if d.logger != nil {
		d.logger.Info("indexed watched file", zap.String("path", path), zap.String("doc_id", handle))
	}
	if replaced {
		d.drop(ctx, path, old)
	}
}

// Remove removes the document built from path, if any.
func (d *DropFolder) Remove(ctx context.Context, path string) {
	d.mu.Lock()
	handle, ok := d.handles[path]
	delete(d.handles, path)
	d.mu.Unlock()
	if ok {
		d.drop(ctx, path, handle)
	}
}

// Handle returns the current document handle for path.
func (d *DropFolder) Handle(path string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, ok := d.handles[path]
	return h, ok
}

func (d *DropFolder) drop(ctx context.Context, path, handle string) {
	if err := d.remove(ctx, handle); err != nil {
		// Usually the registry already evicted it.
		if d.logger != nil {
			d.logger.Debug("failed to remove document of watched file",
				zap.String("path", path), zap.String("doc_id", handle), zap.Error(err))
		}
		return
	}
	if d.logger != nil {
		d.logger.Debug("removed document of watched file", zap.String("path", path), zap.String("doc_id", handle))
	}
}
