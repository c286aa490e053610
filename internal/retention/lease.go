package retention

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"

	platformredis "consentry/internal/platform/redis"
)

const leaseKey = "consentry:retention:lease"

// releaseScript deletes the lease only while the caller still holds it.
// The check and delete must run as one unit: a separate GET/DEL pair can
// delete a lease that expired and was reacquired in between.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Lease serializes retention runs across replicas with a Redis SET NX
// lock. A nil lease always acquires, for single-instance deployments and
// tests.
type Lease struct {
	client *platformredis.Client
	ttl    time.Duration
}

func NewLease(client *platformredis.Client, ttl time.Duration) *Lease {
	if client == nil {
		return nil
	}
	return &Lease{client: client, ttl: ttl}
}

// Acquire takes the lease. Returns false when another replica holds it.
func (l *Lease) Acquire(ctx context.Context, holder string) (bool, error) {
	if l == nil {
		return true, nil
	}
	return l.client.SetNX(ctx, leaseKey, holder, l.ttl).Result()
}

// Release drops the lease if this holder still owns it. The TTL reclaims
// leases of crashed holders.
func (l *Lease) Release(ctx context.Context, holder string) error {
	if l == nil {
		return nil
	}
	return releaseScript.Run(ctx, l.client, []string{leaseKey}, holder).Err()
}
