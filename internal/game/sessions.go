package game

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Sessions：会话 ID -> 玩家，按容量与登录后时长淘汰（查询不续期）
type Sessions struct {
	lru *expirable.LRU[string, *Player]
}

// NewSessions：size<=0 时不限容量；ttl<=0 时不过期
func NewSessions(size int, ttl time.Duration) *Sessions {
	return &Sessions{lru: expirable.NewLRU[string, *Player](size, nil, ttl)}
}

// Create：登记玩家并返回随机会话 ID
func (s *Sessions) Create(p *Player) string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	id := hex.EncodeToString(b[:])
	s.lru.Add(id, p)
	return id
}

func (s *Sessions) Get(id string) (*Player, bool) { return s.lru.Get(id) }

func (s *Sessions) Remove(id string) { s.lru.Remove(id) }

func (s *Sessions) Len() int { return s.lru.Len() }
