// Package pairing creates rule authorities for new games and publishes
// networked hosts in a redis lobby so peers can join by code.
package pairing

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/park285/cheese-board/internal/domain"
	"github.com/park285/cheese-board/internal/obslog"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix     = "board:lobby:"
	keyIndex      = "board:lobby:index"
	codeAttempts  = 5
	defaultTTL    = 10 * time.Minute
	codeAlphabet  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeRandBytes = 6
)

var ErrUnknownCode = fmt.Errorf("lobby code not found or expired: %w", domain.ErrNetworkUnavailable)

// HostEntry is stored as JSON under board:lobby:<code>.
type HostEntry struct {
	Code      string    `json:"code"`
	URL       string    `json:"url"`
	Session   string    `json:"session"`
	CreatedAt time.Time `json:"created_at"`
}

type Lobby struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewLobby(rdb *redis.Client, ttl time.Duration) *Lobby {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Lobby{rdb: rdb, ttl: ttl}
}

// OpenLobby connects to redisURL and pings it.
func OpenLobby(ctx context.Context, redisURL string, ttl time.Duration) (*Lobby, error) {
	opt, err := redis.ParseURL(strings.TrimSpace(redisURL))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewLobby(rdb, ttl), nil
}

func keyEntry(code string) string { return keyPrefix + strings.ToUpper(strings.TrimSpace(code)) }

// Register publishes url under a fresh code.
func (l *Lobby) Register(ctx context.Context, url, session string) (HostEntry, error) {
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := newCode()
		if err != nil {
			return HostEntry{}, err
		}
		e := HostEntry{Code: code, URL: url, Session: session, CreatedAt: time.Now().UTC()}
		raw, err := json.Marshal(e)
		if err != nil {
			return HostEntry{}, err
		}
		ok, err := l.rdb.SetNX(ctx, keyEntry(code), raw, l.ttl).Result()
		if err != nil {
			return HostEntry{}, fmt.Errorf("lobby register: %w", err)
		}
		if !ok {
			continue
		}
		if err := l.rdb.SAdd(ctx, keyIndex, code).Err(); err != nil {
			return HostEntry{}, fmt.Errorf("lobby index: %w", err)
		}
		_ = l.rdb.Expire(ctx, keyIndex, l.ttl).Err()
		obslog.L().Info("lobby_register", zap.String("code", code), zap.String("url", url))
		return e, nil
	}
	return HostEntry{}, errors.New("lobby: could not allocate a free code")
}

// Resolve looks up an open host.
func (l *Lobby) Resolve(ctx context.Context, code string) (HostEntry, error) {
	raw, err := l.rdb.Get(ctx, keyEntry(code)).Bytes()
	if err == redis.Nil {
		return HostEntry{}, ErrUnknownCode
	}
	if err != nil {
		return HostEntry{}, fmt.Errorf("lobby resolve: %v: %w", err, domain.ErrNetworkUnavailable)
	}
	var e HostEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return HostEntry{}, fmt.Errorf("lobby entry %s: %w", code, err)
	}
	obslog.L().Info("lobby_resolve", zap.String("code", e.Code))
	return e, nil
}

// List returns open hosts, oldest first, pruning expired index members.
func (l *Lobby) List(ctx context.Context) ([]HostEntry, error) {
	codes, err := l.rdb.SMembers(ctx, keyIndex).Result()
	if err != nil {
		return nil, err
	}
	out := make([]HostEntry, 0, len(codes))
	for _, c := range codes {
		e, err := l.Resolve(ctx, c)
		if errors.Is(err, ErrUnknownCode) {
			_ = l.rdb.SRem(ctx, keyIndex, c).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Withdraw removes code once its host is paired or gave up.
func (l *Lobby) Withdraw(ctx context.Context, code string) error {
	if strings.TrimSpace(code) == "" {
		return nil
	}
	pipe := l.rdb.TxPipeline()
	pipe.Del(ctx, keyEntry(code))
	pipe.SRem(ctx, keyIndex, strings.ToUpper(strings.TrimSpace(code)))
	_, err := pipe.Exec(ctx)
	return err
}

func (l *Lobby) Ping(ctx context.Context) error { return l.rdb.Ping(ctx).Err() }

func (l *Lobby) Close() error { return l.rdb.Close() }

// newCode returns "BD-" plus six characters without look-alike glyphs.
func newCode() (string, error) {
	b := make([]byte, codeRandBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return "BD-" + string(b), nil
}
