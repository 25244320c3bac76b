// Package identity resolves running processes to stable application
// identities, caching results to keep the polling hot path cheap and
// to tolerate PID reuse.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"hdrd/internal/domain"
)

// DefaultCacheTTL bounds how long a resolved identity may be reused
// for a PID. Entries older than this are treated as absent even if
// still stored, so a reused PID cannot inherit a stale identity.
// Fixed heuristic carried over from observed behavior, not derived.
const DefaultCacheTTL = 5 * time.Second

// ErrMalformedPackageName is returned when a package full name has
// fewer than the five underscore-delimited segments the format requires.
var ErrMalformedPackageName = errors.New("malformed package full name")

type cacheEntry struct {
	id       domain.AppIdentifier
	lastSeen time.Time
}

// Resolver implements domain.IdentityResolver.
//
// Resolution order: cache, then package query (only meaningful for
// packaged apps), then the Win32 executable stem. Query failures are
// non-fatal; the stem fallback always produces an identity.
type Resolver struct {
	mu    sync.Mutex
	cache map[int32]cacheEntry

	ttl time.Duration
	now func() time.Time

	// queryPackage returns the package full name for a process, or
	// ok=false for a plain Win32 process. Platform-specific.
	queryPackage func(pid int32) (fullName string, ok bool, err error)

	logger *zap.Logger
}

// NewResolver creates a resolver backed by the OS package-identity
// query and the default cache TTL.
func NewResolver(logger *zap.Logger) *Resolver {
	return &Resolver{
		cache:        make(map[int32]cacheEntry),
		ttl:          DefaultCacheTTL,
		now:          time.Now,
		queryPackage: queryPackageFullName,
		logger:       logger,
	}
}

// Cached returns the unexpired cached identity for a PID, refreshing
// its timestamp on hit. Expired entries are dropped.
func (r *Resolver) Cached(pid int32) (domain.AppIdentifier, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.cache[pid]
	if !ok {
		return domain.AppIdentifier{}, false
	}
	if r.now().Sub(entry.lastSeen) > r.ttl {
		delete(r.cache, pid)
		return domain.AppIdentifier{}, false
	}
	entry.lastSeen = r.now()
	r.cache[pid] = entry
	return entry.id, true
}

// Resolve returns the stable identity for a process. The result is
// cached regardless of which path produced it.
func (r *Resolver) Resolve(pid int32, exeName string) domain.AppIdentifier {
	if id, ok := r.Cached(pid); ok {
		return id
	}

	id := r.resolveUncached(pid, exeName)

	r.mu.Lock()
	r.cache[pid] = cacheEntry{id: id, lastSeen: r.now()}
	r.mu.Unlock()

	return id
}

func (r *Resolver) resolveUncached(pid int32, exeName string) domain.AppIdentifier {
	fullName, isPackaged, err := r.queryPackage(pid)
	if err != nil {
		// Non-fatal: the process may have exited, or we lack query
		// rights. Fall back to whatever name the snapshot exposed.
		r.logger.Debug("package query failed, using executable stem",
			zap.Int32("pid", pid),
			zap.String("exe", exeName),
			zap.Error(err))
		return domain.Win32ID(Stem(exeName))
	}
	if !isPackaged {
		return domain.Win32ID(Stem(exeName))
	}

	family, err := PackageFamilyName(fullName)
	if err != nil {
		r.logger.Warn("unparseable package full name, using executable stem",
			zap.Int32("pid", pid),
			zap.String("full_name", fullName),
			zap.Error(err))
		return domain.Win32ID(Stem(exeName))
	}
	return domain.UWPID(family)
}

// PackageFamilyName derives the stable family name from a package full
// name of the form Name_Version_Architecture_ResourceId_PublisherId.
// The family name is Name_PublisherId. Fewer than five segments is a
// parse error.
func PackageFamilyName(fullName string) (string, error) {
	segments := strings.Split(fullName, "_")
	if len(segments) < 5 {
		return "", fmt.Errorf("%w: %q has %d segments, need at least 5",
			ErrMalformedPackageName, fullName, len(segments))
	}
	return segments[0] + "_" + segments[len(segments)-1], nil
}

// Stem normalizes an executable filename to the lowercase stem used
// for Win32 identity: path stripped, last extension removed.
//
//	"C:\\Games\\Cyberpunk2077.exe" -> "cyberpunk2077"
//	"MyApp.EXE"                    -> "myapp"
//	"my.app.exe"                   -> "my.app"
func Stem(exeName string) string {
	name := exeName
	if i := strings.LastIndexByte(name, '\\'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

var _ domain.IdentityResolver = (*Resolver)(nil)
