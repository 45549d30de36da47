package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ipCacheFile is the on-disk shape of ip_cache.json: a flat map from IP
// address to the opaque location string the external renamer collaborator
// produces. The core never interprets these values.
type ipCacheFile map[string]string

// fileGeoCache is the default GeoBackend: a single JSON file rewritten
// atomically on every Set. Fine for the cache's expected size (one entry per
// distinct node server address seen across runs) and keeps the deployment
// footprint to flat files, consistent with the rest of the Store.
type fileGeoCache struct {
	store *Store
}

func (f *fileGeoCache) Get(ctx context.Context, ip string) (string, bool, error) {
	cache, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := cache[ip]
	return v, ok, nil
}

func (f *fileGeoCache) Set(ctx context.Context, ip, location string) error {
	cache, err := f.load()
	if err != nil {
		return err
	}
	cache[ip] = location

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal ip cache: %w", err)
	}
	return f.store.writeAtomic(ipCacheFileName, data)
}

func (f *fileGeoCache) load() (ipCacheFile, error) {
	data, err := os.ReadFile(f.store.path(ipCacheFileName))
	if errors.Is(err, os.ErrNotExist) {
		return ipCacheFile{}, nil
	}
	if err != nil {
		f.store.log.Errorw("store: failed to read ip cache file", "error", err)
		return ipCacheFile{}, nil
	}

	var cache ipCacheFile
	if err := json.Unmarshal(data, &cache); err != nil {
		f.store.log.Errorw("store: ip cache file corrupt, starting from empty cache", "error", err)
		return ipCacheFile{}, nil
	}
	if cache == nil {
		cache = ipCacheFile{}
	}
	return cache, nil
}

// backend returns the Store's configured GeoBackend, defaulting to the
// file-backed cache when none was injected at construction.
func (s *Store) backend() GeoBackend {
	if s.geo != nil {
		return s.geo
	}
	return &fileGeoCache{store: s}
}

// GetIPGeo looks up a cached location string for ip. ok is false on a cache
// miss; err is non-nil only on a backend failure (e.g. Redis unreachable),
// which callers should treat as a cache miss rather than aborting the run.
func (s *Store) GetIPGeo(ctx context.Context, ip string) (string, bool, error) {
	return s.backend().Get(ctx, ip)
}

// SetIPGeo stores a location string for ip, overwriting any prior value.
func (s *Store) SetIPGeo(ctx context.Context, ip, location string) error {
	return s.backend().Set(ctx, ip, location)
}
