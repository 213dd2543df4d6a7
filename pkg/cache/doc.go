// Package cache provides a generic, thread-safe LRU cache with optional
// per-entry expiry.
//
// The subscription resolver keeps resolved plan snapshots here so repeated
// entitlement checks for the same subscriber do not hit storage:
//
//	c := cache.New[uuid.UUID, Entry](10_000, cache.WithTTL(time.Minute))
//	c.Put(subscriberID, entry)
//	if e, ok := c.Get(subscriberID); ok {
//	    // fresh entry
//	}
//
// When capacity is exceeded the least recently used entry is evicted. Expired
// entries are dropped lazily on access and count towards capacity until then.
// Get, Put and Remove are O(1).
package cache
