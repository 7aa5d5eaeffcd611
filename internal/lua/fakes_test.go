package lua

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	lua "github.com/yuin/gopher-lua"

	"github.com/zot/vega/internal/assets"
	"github.com/zot/vega/internal/config"
)

// countingStore wraps a store and counts handle traffic. Directories listed in
// failDirs cannot be opened.
type countingStore struct {
	inner    assets.Store
	failDirs map[string]bool

	mu          sync.Mutex
	dirOpens    []string
	dirCloses   int
	assetOpens  []string
	assetCloses int
}

func newCountingStore(files fstest.MapFS, failDirs ...string) *countingStore {
	s := &countingStore{inner: assets.NewFSStore(files), failDirs: map[string]bool{}}
	for _, d := range failDirs {
		s.failDirs[d] = true
	}
	return s
}

func (s *countingStore) OpenDir(dir string) (assets.Dir, error) {
	s.mu.Lock()
	s.dirOpens = append(s.dirOpens, dir)
	fail := s.failDirs[dir]
	s.mu.Unlock()
	if fail {
		return nil, fmt.Errorf("open dir %q: %w", dir, errors.New("asset manager unavailable"))
	}
	d, err := s.inner.OpenDir(dir)
	if err != nil {
		return nil, err
	}
	return &countingDir{Dir: d, store: s}, nil
}

func (s *countingStore) OpenBuffered(name string) (assets.Asset, error) {
	s.mu.Lock()
	s.assetOpens = append(s.assetOpens, name)
	s.mu.Unlock()
	a, err := s.inner.OpenBuffered(name)
	if err != nil {
		return nil, err
	}
	return &countingAsset{Asset: a, store: s}, nil
}

func (s *countingStore) counts() (dirOpens, dirCloses, assetOpens, assetCloses int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dirOpens), s.dirCloses, len(s.assetOpens), s.assetCloses
}

// openedDirs returns the failing and successful OpenDir calls in order.
func (s *countingStore) openedDirs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.dirOpens...)
}

type countingDir struct {
	assets.Dir
	store *countingStore
}

func (d *countingDir) Close() error {
	d.store.mu.Lock()
	d.store.dirCloses++
	d.store.mu.Unlock()
	return d.Dir.Close()
}

type countingAsset struct {
	assets.Asset
	store *countingStore
}

func (a *countingAsset) Close() error {
	a.store.mu.Lock()
	a.store.assetCloses++
	a.store.mu.Unlock()
	return a.Asset.Close()
}

// recorder is a Diagnostics that keeps every report.
type recorder struct {
	mu      sync.Mutex
	reports []*LoadError
}

func (r *recorder) Report(err *LoadError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, err)
}

func (r *recorder) all() []*LoadError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*LoadError(nil), r.reports...)
}

// logLines is a Logger that keeps formatted lines.
type logLines struct {
	mu    sync.Mutex
	lines []string
}

func (l *logLines) Log(level int, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf("%d %s", level, fmt.Sprintf(format, args...)))
}

func (l *logLines) contains(s string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, s) {
			return true
		}
	}
	return false
}

// newTestState opens the libraries a Runtime opens and installs a searcher over store.
func newTestState(t *testing.T, store assets.Store, mode config.ErrorMode) (*lua.LState, *Searcher, *recorder) {
	t.Helper()
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	t.Cleanup(L.Close)
	for _, lib := range stdlibs {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.open), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
			t.Fatalf("open %s: %v", lib.name, err)
		}
	}
	// keep the built-in path loader away from the working directory
	L.SetField(L.GetGlobal("package"), "path", lua.LString(""))

	rec := &recorder{}
	s := NewSearcher(store, NewLoader(store, rec, mode), nil)
	if err := Install(L, s); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	return L, s, rec
}
