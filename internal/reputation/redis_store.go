package reputation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// leaderboardKey is a sorted set of user ids scored by XP.
const leaderboardKey = "reputation:leaderboard"

// awardScript appends the event, applies the delta and updates the
// leaderboard in one step.
// KEYS: profile hash, events list, leaderboard.
// ARGV: event json, delta, create flag, updated_at, user id, base rank, then
// (threshold, rank) pairs in ascending order.
var awardScript = redis.NewScript(`
redis.call('LPUSH', KEYS[2], ARGV[1])
if redis.call('EXISTS', KEYS[1]) == 0 and ARGV[3] ~= '1' then
	return {-1, ''}
end
local xp = redis.call('HINCRBY', KEYS[1], 'xp', ARGV[2])
local rank = ARGV[6]
for i = 7, #ARGV, 2 do
	if xp > tonumber(ARGV[i]) then
		rank = ARGV[i + 1]
	end
end
redis.call('HSET', KEYS[1], 'rank', rank, 'updated_at', ARGV[4])
redis.call('ZADD', KEYS[3], xp, ARGV[5])
return {xp, rank}
`)

// RedisStore keeps the ledger in Redis. The leaderboard is a single key
// written by every award, so all keys must be served by one node.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore creates a new RedisStore
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

// per-user keys share a hash tag
func profileKey(userID uuid.UUID) string {
	return fmt.Sprintf("reputation:{%s}:profile", userID)
}

func eventsKey(userID uuid.UUID) string {
	return fmt.Sprintf("reputation:{%s}:events", userID)
}

func awardKeys(userID uuid.UUID) []string {
	return []string{profileKey(userID), eventsKey(userID), leaderboardKey}
}

// rankArgs flattens rankTable into ascending (threshold, rank) pairs.
func rankArgs() []interface{} {
	args := make([]interface{}, 0, 1+2*len(rankTable))
	args = append(args, string(RankCitizen))
	for i := len(rankTable) - 1; i >= 0; i-- {
		args = append(args, strconv.FormatInt(rankTable[i].above, 10), string(rankTable[i].rank))
	}
	return args
}

func awardArgs(payload []byte, event *Event, createMissing bool) []interface{} {
	create := "0"
	if createMissing {
		create = "1"
	}
	args := []interface{}{
		string(payload),
		strconv.Itoa(event.Delta),
		create,
		event.CreatedAt.UTC().Format(time.RFC3339Nano),
		event.UserID.String(),
	}
	return append(args, rankArgs()...)
}

// AppendEvent implements Store
func (s *RedisStore) AppendEvent(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode reputation event: %w", err)
	}
	if err := s.client.LPush(ctx, eventsKey(event.UserID), payload).Err(); err != nil {
		return fmt.Errorf("failed to append reputation event: %w", err)
	}
	return nil
}

// ApplyAward implements Store
func (s *RedisStore) ApplyAward(ctx context.Context, event *Event, createMissing bool) (*Profile, bool, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode reputation event: %w", err)
	}

	res, err := awardScript.Run(ctx, s.client, awardKeys(event.UserID), awardArgs(payload, event, createMissing)...).Slice()
	if err != nil {
		return nil, false, fmt.Errorf("failed to apply award: %w", err)
	}
	if len(res) != 2 {
		return nil, false, fmt.Errorf("unexpected award script reply %v", res)
	}

	xp, ok := res[0].(int64)
	if !ok {
		return nil, false, fmt.Errorf("unexpected xp in award script reply %v", res[0])
	}
	if xp < 0 {
		return nil, false, nil
	}
	rank, _ := res[1].(string)

	return &Profile{
		UserID:    event.UserID,
		XP:        xp,
		Rank:      Rank(rank),
		UpdatedAt: event.CreatedAt,
	}, true, nil
}

// GetProfile implements Store
func (s *RedisStore) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	fields, err := s.client.HGetAll(ctx, profileKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrProfileNotFound
	}

	xp, err := strconv.ParseInt(fields["xp"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt xp for %s: %w", userID, err)
	}
	profile := &Profile{UserID: userID, XP: xp, Rank: Rank(fields["rank"])}
	if ts, err := time.Parse(time.RFC3339Nano, fields["updated_at"]); err == nil {
		profile.UpdatedAt = ts
	}
	return profile, nil
}

// TopProfiles implements Store. Ranks are derived from the stored score.
func (s *RedisStore) TopProfiles(ctx context.Context, limit int) ([]Profile, error) {
	members, err := s.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(limit-1)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}

	profiles := make([]Profile, 0, len(members))
	for _, m := range members {
		member, _ := m.Member.(string)
		userID, err := uuid.Parse(member)
		if err != nil {
			return nil, fmt.Errorf("corrupt leaderboard member %v: %w", m.Member, err)
		}
		xp := int64(m.Score)
		profiles = append(profiles, Profile{UserID: userID, XP: xp, Rank: RankForXP(xp)})
	}
	return profiles, nil
}

// ListEvents implements Store
func (s *RedisStore) ListEvents(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Event, int64, error) {
	key := eventsKey(userID)

	total, err := s.client.LLen(ctx, key).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count reputation events: %w", err)
	}

	raw, err := s.client.LRange(ctx, key, int64(offset), int64(offset+limit-1)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, fmt.Errorf("failed to list reputation events: %w", err)
	}

	events := make([]Event, 0, len(raw))
	for _, item := range raw {
		var e Event
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, 0, fmt.Errorf("corrupt reputation event: %w", err)
		}
		events = append(events, e)
	}
	return events, total, nil
}
