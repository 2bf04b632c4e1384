package configstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/warden-mod/warden/chatmod/policy"
)

var (
	redisPolicyPrefix = "warden/policy/"
	redisStatePrefix  = "warden/ustate/"
	redisAuditPrefix  = "warden/audit/"
	redisAuditIDKey   = "warden/audit-id/"
	redisStatsPrefix  = "warden/stats/"

	// retention for the audit idempotency markers; duplicates delivered later
	// than this window would produce a second record, which is acceptable for
	// at-least-once transports that re-deliver within seconds
	auditIDTTL = 48 * time.Hour

	// per-group bound on the redis audit list
	auditListMax = int64(10_000)

	// retention for per-user behavioral state; refreshed on every write, so
	// only users inactive this long age out. Far longer than the escalation
	// cool-down, which resets lazily well inside this window.
	userStateTTL = 30 * 24 * time.Hour
)

type RedisStore struct {
	Client *redis.Client
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return &RedisStore{Client: rdb}, nil
}

func (s *RedisStore) GetPolicy(ctx context.Context, group string) (*policy.Policy, error) {
	raw, err := s.Client.Get(ctx, redisPolicyPrefix+group).Bytes()
	if err == redis.Nil {
		return policy.Default(), nil
	} else if err != nil {
		return nil, err
	}
	var pol policy.Policy
	if err := json.Unmarshal(raw, &pol); err != nil {
		return nil, err
	}
	return &pol, nil
}

func (s *RedisStore) PutPolicy(ctx context.Context, group string, pol *policy.Policy) error {
	raw, err := json.Marshal(pol)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, redisPolicyPrefix+group, raw, 0).Err()
}

func (s *RedisStore) GetUserState(ctx context.Context, group, user string) (*UserState, error) {
	raw, err := s.Client.Get(ctx, redisStatePrefix+group+"/"+user).Bytes()
	if err == redis.Nil {
		return NewUserState(), nil
	} else if err != nil {
		return nil, err
	}
	var st UserState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *RedisStore) PutUserState(ctx context.Context, group, user string, st *UserState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, redisStatePrefix+group+"/"+user, raw, userStateTTL).Err()
}

func (s *RedisStore) AppendAudit(ctx context.Context, rec *AuditRecord) error {
	// claim the event id first; losing the claim means a duplicate delivery
	ok, err := s.Client.SetNX(ctx, redisAuditIDKey+rec.EventID, 1, auditIDTTL).Result()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	key := redisAuditPrefix + rec.GroupID
	multi := s.Client.Pipeline()
	multi.LPush(ctx, key, raw)
	multi.LTrim(ctx, key, 0, auditListMax-1)
	_, err = multi.Exec(ctx)
	return err
}

func (s *RedisStore) HasAudit(ctx context.Context, eventID string) (bool, error) {
	n, err := s.Client.Exists(ctx, redisAuditIDKey+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) ListAudit(ctx context.Context, group string, since time.Time) ([]*AuditRecord, error) {
	raws, err := s.Client.LRange(ctx, redisAuditPrefix+group, 0, auditListMax-1).Result()
	if err != nil {
		return nil, err
	}
	// list is newest-first; walk back to oldest and filter
	var out []*AuditRecord
	for i := len(raws) - 1; i >= 0; i-- {
		var rec AuditRecord
		if err := json.Unmarshal([]byte(raws[i]), &rec); err != nil {
			return nil, err
		}
		if rec.CreatedAt.Before(since) {
			continue
		}
		out = append(out, &rec)
	}
	return out, nil
}

func (s *RedisStore) IncrementStat(ctx context.Context, group, name string, delta int64) error {
	return s.Client.HIncrBy(ctx, redisStatsPrefix+group, name, delta).Err()
}

func (s *RedisStore) GetStats(ctx context.Context, group string) (map[string]int64, error) {
	vals, err := s.Client.HGetAll(ctx, redisStatsPrefix+group).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(vals))
	for k, v := range vals {
		var n int64
		if err := json.Unmarshal([]byte(v), &n); err != nil {
			continue
		}
		out[k] = n
	}
	return out, nil
}
