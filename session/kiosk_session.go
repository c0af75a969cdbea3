package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KioskSessionStore keeps the short-lived sessions opened when a member
// tags in at the kiosk door. Redis-backed so every kiosk sees the same
// sessions.
type KioskSessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewKioskSessionStore(rdb *redis.Client, ttl time.Duration) *KioskSessionStore {
	return &KioskSessionStore{rdb: rdb, ttl: ttl}
}

type KioskSession struct {
	MemberID  string `json:"mid"`
	RFID      string `json:"rfid"`
	Role      string `json:"role"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

func key(id string) string           { return fmt.Sprintf("kiosk:sess:%s", id) }
func memberSetKey(mid string) string { return fmt.Sprintf("kiosk:member_sessions:%s", mid) }

func (s *KioskSessionStore) Create(ctx context.Context, id, memberID, rfid, role string) error {
	now := time.Now()
	b, _ := json.Marshal(KioskSession{
		MemberID:  memberID,
		RFID:      rfid,
		Role:      role,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.ttl).Unix(),
	})
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, key(id), b, s.ttl)
	pipe.SAdd(ctx, memberSetKey(memberID), id)
	pipe.Expire(ctx, memberSetKey(memberID), s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *KioskSessionStore) Get(ctx context.Context, id string) (*KioskSession, error) {
	b, err := s.rdb.Get(ctx, key(id)).Bytes()
	if err != nil {
		return nil, err
	}
	var ks KioskSession
	if err := json.Unmarshal(b, &ks); err != nil {
		return nil, err
	}
	return &ks, nil
}

func (s *KioskSessionStore) Delete(ctx context.Context, id string) error {
	ks, _ := s.Get(ctx, id)
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key(id))
	if ks != nil {
		pipe.SRem(ctx, memberSetKey(ks.MemberID), id)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// RevokeAllForMember drops every open session of a member, e.g. after
// their role changes or they are banished.
func (s *KioskSessionStore) RevokeAllForMember(ctx context.Context, memberID string) error {
	ids, err := s.rdb.SMembers(ctx, memberSetKey(memberID)).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	for _, sid := range ids {
		pipe.Del(ctx, key(sid))
	}
	pipe.Del(ctx, memberSetKey(memberID))
	_, err = pipe.Exec(ctx)
	return err
}
