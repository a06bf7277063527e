package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

// Codes keeps short-lived verification codes in Redis. TTL handles
// expiry; a successful check consumes the code so it cannot be replayed.
type Codes struct {
	rdb *redis.Client
	ttl time.Duration
}

var ErrCodeMismatch = errors.New("verification code invalid or expired")

func NewCodes(rdb *redis.Client) *Codes {
	return &Codes{rdb: rdb, ttl: 10 * time.Minute}
}

func codeKey(identity string) string { return "verify:" + identity }

// Issue generates a six-digit code and stores it under the user's
// contact identity (phone or email).
func (c *Codes) Issue(ctx context.Context, identity string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	code := fmt.Sprintf("%06d", n.Int64())

	if err := c.rdb.Set(ctx, codeKey(identity), code, c.ttl).Err(); err != nil {
		return "", fmt.Errorf("store verification code: %w", err)
	}
	return code, nil
}

// Check consumes the stored code when it matches.
func (c *Codes) Check(ctx context.Context, identity, code string) error {
	stored, err := c.rdb.Get(ctx, codeKey(identity)).Result()
	if err == redis.Nil {
		return ErrCodeMismatch
	}
	if err != nil {
		return fmt.Errorf("load verification code: %w", err)
	}
	if stored != code {
		return ErrCodeMismatch
	}
	return c.rdb.Del(ctx, codeKey(identity)).Err()
}
