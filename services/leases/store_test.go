package leases

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leasegate/leasegate/models"
)

func record(leaseID, key string, expiresAt time.Time) *Record {
	return &Record{
		LeaseID:        leaseID,
		IdempotencyKey: key,
		Request:        models.AcquireLeaseRequest{ActorID: "a1", WorkspaceID: "w1"},
		ExpiresAt:      expiresAt,
	}
}

func TestStore_AddAndLookup(t *testing.T) {
	s := NewStore()
	s.Add(record("l1", "k1", time.Now().Add(time.Minute)))

	require.NotNil(t, s.GetByLeaseID("l1"))
	require.NotNil(t, s.GetByIdempotency("k1"))
	assert.Nil(t, s.GetByLeaseID("missing"))
	assert.Nil(t, s.GetByIdempotency(""))
	assert.Equal(t, 1, s.Count())
}

func TestStore_RemoveIsIdempotent(t *testing.T) {
	s := NewStore()
	s.Add(record("l1", "k1", time.Now().Add(time.Minute)))

	first := s.Remove("l1")
	require.NotNil(t, first)

	// the loser of a release/sweep race observes the lease already gone
	assert.Nil(t, s.Remove("l1"))
	assert.Nil(t, s.GetByIdempotency("k1"))
}

func TestStore_RemoveExpired(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.Add(record("live", "k-live", now.Add(time.Minute)))
	s.Add(record("stale", "k-stale", now.Add(-time.Second)))

	expired := s.RemoveExpired(now)
	require.Len(t, expired, 1)
	assert.Equal(t, "stale", expired[0].LeaseID)
	assert.NotNil(t, s.GetByLeaseID("live"))
	assert.Nil(t, s.GetByIdempotency("k-stale"))
}
