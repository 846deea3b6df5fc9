package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

type fakeIndex struct {
	mu      sync.Mutex
	next    int
	fail    bool
	live    map[string]bool
	removed []string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{live: make(map[string]bool)}
}

func (f *fakeIndex) index(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", errors.New("extract failed")
	}
	f.next++
	h := fmt.Sprintf("doc_%d", f.next)
	f.live[h] = true
	return h, nil
}

func (f *fakeIndex) remove(_ context.Context, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.live[handle] {
		return errors.New("not found")
	}
	delete(f.live, handle)
	f.removed = append(f.removed, handle)
	return nil
}

func TestDropFolder_RewriteReplacesHandle(t *testing.T) {
	fi := newFakeIndex()
	df := NewDropFolder(fi.index, fi.remove, nil)
	ctx := context.Background()

	df.Index(ctx, "/in/a.pdf")
	first, ok := df.Handle("/in/a.pdf")
	if !ok {
		t.Fatal("no handle after first index")
	}

	df.Index(ctx, "/in/a.pdf")
	second, _ := df.Handle("/in/a.pdf")
	if second == first {
		t.Fatal("rewrite should produce a new handle")
	}
	if fi.live[first] {
		t.Errorf("old handle %s still registered", first)
	}
	if !fi.live[second] {
		t.Errorf("new handle %s not registered", second)
	}
}

func TestDropFolder_FailedRewriteKeepsOldHandle(t *testing.T) {
	fi := newFakeIndex()
	df := NewDropFolder(fi.index, fi.remove, nil)
	ctx := context.Background()

	df.Index(ctx, "/in/a.pdf")
	first, _ := df.Handle("/in/a.pdf")

	fi.fail = true
	df.Index(ctx, "/in/a.pdf")
	if h, _ := df.Handle("/in/a.pdf"); h != first {
		t.Errorf("handle = %s, want %s", h, first)
	}
	if !fi.live[first] {
		t.Error("old document removed after failed rewrite")
	}
}

func TestDropFolder_Remove(t *testing.T) {
	fi := newFakeIndex()
	df := NewDropFolder(fi.index, fi.remove, nil)
	ctx := context.Background()

	df.Index(ctx, "/in/a.pdf")
	h, _ := df.Handle("/in/a.pdf")
	df.Remove(ctx, "/in/a.pdf")

	if _, ok := df.Handle("/in/a.pdf"); ok {
		t.Error("handle still tracked after remove")
	}
	if fi.live[h] {
		t.Error("document still registered after remove")
	}

	// Unknown paths and already-evicted handles are ignored.
	df.Remove(ctx, "/in/never.pdf")
	df.Index(ctx, "/in/b.pdf")
	hb, _ := df.Handle("/in/b.pdf")
	_ = fi.remove(ctx, hb)
	df.Remove(ctx, "/in/b.pdf")
}
