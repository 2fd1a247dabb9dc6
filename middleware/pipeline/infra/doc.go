// Package infra contains the concrete implementations for the contracts
// defined in the domain package.
//
// Examples:
//   - RedisBucketStore: atomic token bucket as a server-side Lua script
//   - LocalBucketStore: single-instance bucket on golang.org/x/time/rate
//   - RedisConfigProvider: hot-reloadable policy documents with defaults
//   - ChanPool: channel semaphore for the concurrency limit
package infra
