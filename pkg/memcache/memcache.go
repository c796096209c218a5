package memcache

import (
	"FaceVerification/internal/entity"
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const cleanupInterval = 10 * time.Minute

// DescriptorCache is the single-node tier-1 backend. go-cache checks
// expiry on every read, so an entry is never served past its ttl.
type DescriptorCache struct {
	c *gocache.Cache
}

func New(defaultTTL time.Duration) *DescriptorCache {
	return &DescriptorCache{c: gocache.New(defaultTTL, cleanupInterval)}
}

func (m *DescriptorCache) Get(ctx context.Context, subjectID string) (entity.Descriptor, bool, error) {
	v, ok := m.c.Get(subjectID)
	if !ok {
		return nil, false, nil
	}
	return v.(entity.Descriptor), true, nil
}

func (m *DescriptorCache) GetMany(ctx context.Context, subjectIDs []string) (map[string]entity.Descriptor, error) {
	out := make(map[string]entity.Descriptor, len(subjectIDs))
	for _, id := range subjectIDs {
		if v, ok := m.c.Get(id); ok {
			out[id] = v.(entity.Descriptor)
		}
	}
	return out, nil
}

func (m *DescriptorCache) Set(ctx context.Context, subjectID string, d entity.Descriptor, ttl time.Duration) error {
	m.c.Set(subjectID, d.Clone(), ttl)
	return nil
}

func (m *DescriptorCache) Add(ctx context.Context, subjectID string, d entity.Descriptor, ttl time.Duration) (bool, error) {
	if err := m.c.Add(subjectID, d.Clone(), ttl); err != nil {
		return false, nil
	}
	return true, nil
}

func (m *DescriptorCache) Delete(ctx context.Context, subjectID string) error {
	m.c.Delete(subjectID)
	return nil
}

func (m *DescriptorCache) Len() int {
	return m.c.ItemCount()
}
