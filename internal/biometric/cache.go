package biometric

import (
	"FaceVerification/internal/entity"
	contextPkg "FaceVerification/pkg/context"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultCacheTTL = time.Hour

// DescriptorCache is the volatile first tier. Implementations must be safe for
// concurrent use and must never return an entry older than its ttl.
type DescriptorCache interface {
	Get(ctx context.Context, subjectID string) (entity.Descriptor, bool, error)
	GetMany(ctx context.Context, subjectIDs []string) (map[string]entity.Descriptor, error)
	Set(ctx context.Context, subjectID string, d entity.Descriptor, ttl time.Duration) error
	// Add stores d only when subjectID has no live entry and reports whether
	// it did.
	Add(ctx context.Context, subjectID string, d entity.Descriptor, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, subjectID string) error
}

// SubjectStore is the persistent record store.
type SubjectStore interface {
	GetSubjectDescriptor(ctx context.Context, subjectID string) (entity.Descriptor, error)
	GetSubjectDescriptors(ctx context.Context, subjectIDs []string) (map[string]entity.Descriptor, error)
	GetSubjectsByScope(ctx context.Context, scope entity.Scope) ([]string, error)
	RecordVerificationAudit(ctx context.Context, subjectID string, audit entity.VerificationAudit) error
}

// Cache reads the volatile tier first and falls back to the store,
// writing through on a miss. Miss write-through never replaces an existing
// entry, so a store read that races with re-enrollment cannot overwrite the
// descriptor the enrollment just put.
type Cache struct {
	log   *logrus.Logger
	tier1 DescriptorCache
	store SubjectStore
	ttl   time.Duration
}

func NewCache(log *logrus.Logger, tier1 DescriptorCache, store SubjectStore, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		log:   log,
		tier1: tier1,
		store: store,
		ttl:   ttl,
	}
}

// Get returns the reference descriptor and whether it came from the volatile tier.
func (c *Cache) Get(ctx context.Context, subjectID string) (entity.Descriptor, bool, error) {
	requestID := contextPkg.GetRequestID(ctx)

	d, ok, err := c.tier1.Get(ctx, subjectID)
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"subject_id": subjectID,
			"error":      err.Error(),
		}).Warn("Descriptor cache read failed, falling back to store")
	} else if ok {
		return d, true, nil
	}

	d, err = c.store.GetSubjectDescriptor(ctx, subjectID)
	if err != nil {
		return nil, false, storeError(err)
	}
	if len(d) == 0 {
		return nil, false, ErrSubjectNotFound
	}

	c.fill(ctx, subjectID, d)
	return d, false, nil
}

// Put writes to the volatile tier only. Failures are logged, never returned.
func (c *Cache) Put(ctx context.Context, subjectID string, d entity.Descriptor) {
	if err := c.tier1.Set(ctx, subjectID, d, c.ttl); err != nil {
		c.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"subject_id": subjectID,
			"error":      err.Error(),
		}).Warn("Failed to populate descriptor cache")
	}
}

func (c *Cache) fill(ctx context.Context, subjectID string, d entity.Descriptor) {
	if _, err := c.tier1.Add(ctx, subjectID, d, c.ttl); err != nil {
		c.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"subject_id": subjectID,
			"error":      err.Error(),
		}).Warn("Failed to populate descriptor cache")
	}
}

// Invalidate drops a subject from the volatile tier. Call it whenever the
// reference photo changes.
func (c *Cache) Invalidate(ctx context.Context, subjectID string) error {
	if err := c.tier1.Delete(ctx, subjectID); err != nil {
		c.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"subject_id": subjectID,
			"error":      err.Error(),
		}).Error("Failed to invalidate descriptor cache")
		return err
	}
	return nil
}

// BatchGet returns whatever descriptors exist for the given subjects. hits
// reports how many came from the volatile tier. Subjects without a
// descriptor are absent from the map.
func (c *Cache) BatchGet(ctx context.Context, subjectIDs []string) (found map[string]entity.Descriptor, hits int, err error) {
	found = make(map[string]entity.Descriptor, len(subjectIDs))
	if len(subjectIDs) == 0 {
		return found, 0, nil
	}

	cached, err := c.tier1.GetMany(ctx, subjectIDs)
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"count":      len(subjectIDs),
			"error":      err.Error(),
		}).Warn("Batch descriptor cache read failed, falling back to store")
		cached = nil
	}

	missing := make([]string, 0, len(subjectIDs))
	for _, id := range subjectIDs {
		if d, ok := cached[id]; ok && len(d) > 0 {
			found[id] = d
			continue
		}
		missing = append(missing, id)
	}
	hits = len(found)

	if len(missing) == 0 {
		return found, hits, nil
	}

	fetched, err := c.store.GetSubjectDescriptors(ctx, missing)
	if err != nil {
		return nil, 0, storeError(err)
	}

	for id, d := range fetched {
		if len(d) == 0 {
			continue
		}
		found[id] = d
		c.fill(ctx, id, d)
	}

	return found, hits, nil
}

// Warm loads every descriptor of a scope into the volatile tier.
func (c *Cache) Warm(ctx context.Context, scope entity.Scope) (int, error) {
	ids, err := c.store.GetSubjectsByScope(ctx, scope)
	if err != nil {
		return 0, storeError(err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	descriptors, err := c.store.GetSubjectDescriptors(ctx, ids)
	if err != nil {
		return 0, storeError(err)
	}

	count := 0
	for id, d := range descriptors {
		if len(d) == 0 {
			continue
		}
		if _, err := c.tier1.Add(ctx, id, d, c.ttl); err != nil {
			c.log.WithFields(logrus.Fields{
				"request_id": contextPkg.GetRequestID(ctx),
				"subject_id": id,
				"error":      err.Error(),
			}).Warn("Failed to warm descriptor cache entry")
			continue
		}
		count++
	}

	c.log.WithFields(logrus.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"cohort":     scope.Cohort,
		"group":      scope.Group,
		"cached":     count,
	}).Info("Descriptor cache warmed")

	return count, nil
}

func storeError(err error) error {
	if errors.Is(err, ErrSubjectNotFound) || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
