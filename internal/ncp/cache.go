package ncp

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/ms05probe/internal/model"
)

// DefaultClassCacheSize bounds the number of cached class descriptors.
const DefaultClassCacheSize = 256

// CachedClient memoizes GetControlClass. Class descriptors are static for
// the lifetime of a session while the constraint walk asks for the same
// class once per member, so only that call is cached; property reads and
// writes always reach the device.
type CachedClient struct {
	Client
	classes *lru.Cache[string, model.Descriptor]
}

// NewCachedClient wraps inner with a class descriptor cache of size entries.
func NewCachedClient(inner Client, size int) (*CachedClient, error) {
	if size <= 0 {
		size = DefaultClassCacheSize
	}
	cache, err := lru.New[string, model.Descriptor](size)
	if err != nil {
		return nil, fmt.Errorf("class descriptor cache: %w", err)
	}
	return &CachedClient{Client: inner, classes: cache}, nil
}

// GetControlClass returns the cached descriptor when present.
func (c *CachedClient) GetControlClass(ctx context.Context, oid int, classID model.ClassID, includeInherited bool) (model.Descriptor, error) {
	key := fmt.Sprintf("%d/%s/%t", oid, classID, includeInherited)
	if d, ok := c.classes.Get(key); ok {
		return d, nil
	}
	d, err := c.Client.GetControlClass(ctx, oid, classID, includeInherited)
	if err != nil {
		return nil, err
	}
	c.classes.Add(key, d)
	return d, nil
}

// Close drops the cache along with the connection; a reopened session may
// talk to a device with a different class catalog.
func (c *CachedClient) Close() error {
	c.classes.Purge()
	return c.Client.Close()
}
