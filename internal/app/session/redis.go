package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"

	"scratchpay/internal/app/logger"
	"scratchpay/internal/app/model"
	"scratchpay/internal/app/storage"
)

// session.Manager interface implementation
var _ Manager = (*Redis)(nil)

// Redis keeps session records in redis keyed by the JWT id, so tokens can be
// revoked server-side and survive process restarts.
type Redis struct {
	issuer        string
	secretKey     []byte
	tokenLifetime time.Duration
	users         storage.UserRepository
	rdb           *redis.Client
}

func (svc *Redis) LoggerComponent() string {
	return "Session.Redis"
}

type RedisOption func(*Redis)

func WithTokenLifetime(d time.Duration) RedisOption {
	return func(s *Redis) {
		s.tokenLifetime = d
	}
}

func NewRedis(secretKey string, users storage.UserRepository, rdb *redis.Client, opts ...RedisOption) *Redis {
	s := &Redis{
		secretKey:     []byte(secretKey),
		users:         users,
		tokenLifetime: time.Hour,
		rdb:           rdb,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type record struct {
	StartedAt time.Time `json:"started_at"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    uuid.UUID `json:"user_id"`
}

func sessionKey(id string) string {
	return "session:" + id
}

// Create method of session.Creator implementation
func (svc *Redis) Create(ctx context.Context, u *model.User) (string, error) {
	l := logger.Get(ctx, svc)
	l.Debug().Str("user_id", u.ID.String()).Msg("Create")

	id := uuid.New().String()

	now := time.Now()
	exp := now.Add(svc.tokenLifetime)

	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        id,
			NotBefore: now.Unix(),
			ExpiresAt: exp.Unix(),
			Issuer:    svc.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	strToken, err := token.SignedString(svc.secretKey)
	if err != nil {
		l.Error().Err(err).Send()

		return "", fmt.Errorf("jwt encode: %w", err)
	}

	raw, err := json.Marshal(record{
		UserID:    u.ID,
		StartedAt: now,
		ExpiresAt: exp,
	})
	if err != nil {
		return "", fmt.Errorf("session encode: %w", err)
	}

	if err := svc.rdb.Set(ctx, sessionKey(id), raw, svc.tokenLifetime).Err(); err != nil {
		l.Error().Err(err).Send()

		return "", fmt.Errorf("session store: %w", err)
	}

	return strToken, nil
}

// Read method of session.Reader implementation
func (svc *Redis) Read(ctx context.Context, tokenString string) (*model.User, error) {
	l := logger.Get(ctx, svc)

	c := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, c, func(token *jwt.Token) (interface{}, error) {
		return svc.secretKey, nil
	})

	if err != nil {
		l.Debug().Err(err).Msg("ParseWithClaims failed")

		return nil, ErrInvalidToken
	}

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		l.Debug().Msg("Invalid token")

		return nil, ErrInvalidToken
	}

	raw, err := svc.rdb.Get(ctx, sessionKey(c.StandardClaims.Id)).Bytes()
	if err != nil {
		l.Debug().Err(err).Msg("Session not found")

		return nil, ErrInvalidToken
	}

	s := record{}
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, ErrInvalidToken
	}

	if s.ExpiresAt.Before(time.Now()) {
		l.Debug().
			Str("session_id", c.StandardClaims.Id).
			Str("user_id", s.UserID.String()).
			Msg("Session expired")
		svc.rdb.Del(ctx, sessionKey(c.StandardClaims.Id))

		return nil, ErrInvalidToken
	}

	u, err := svc.users.Read(ctx, s.UserID)
	if err != nil {
		l.Debug().Err(err).Send()

		return nil, ErrInvalidToken
	}

	return u, nil
}
