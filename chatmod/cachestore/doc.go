// Component for caching arbitrary data (as JSON strings) with a fixed TTL and purging.
//
// Includes an interface and implementations using redis and in-process memory.
//
// The engine uses this to cache per-group policy reads, improving latency and reducing load on the config store; cached entries also serve as the last-known-good fallback when the store is unavailable.
package cachestore
