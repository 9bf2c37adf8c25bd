package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/examsaathi/backend/internal/config"
	"github.com/examsaathi/backend/internal/model"
)

// Common auth errors.
var (
	ErrOTPInvalid         = errors.New("otp does not match")
	ErrOTPExpired         = errors.New("otp expired or never requested")
	ErrOTPLocked          = errors.New("otp attempts exceeded")
	ErrSessionInvalidated = errors.New("login session invalidated")
)

const otpDigits = 6

// Fields of the pending OTP hash.
const (
	otpFieldName     = "name"
	otpFieldHash     = "hash"
	otpFieldAttempts = "attempts"
)

// Claims extends JWT standard claims with the signed-in user.
type Claims struct {
	jwt.RegisteredClaims
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

// UserStore persists user accounts.
type UserStore interface {
	UpsertOnLogin(ctx context.Context, name, phone string) (*model.User, error)
	GetByPhone(ctx context.Context, phone string) (*model.User, error)
}

// AuthService handles phone OTP sign-in, JWT issuance and the single
// active login per phone.
type AuthService struct {
	cfg   *config.Config
	rdb   *redis.Client
	users UserStore
	log   zerolog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, rdb *redis.Client, users UserStore, log zerolog.Logger) *AuthService {
	return &AuthService{
		cfg:   cfg,
		rdb:   rdb,
		users: users,
		log:   log.With().Str("component", "auth").Logger(),
	}
}

// StartOTP issues a fresh code for phone, replacing any pending one and
// resetting its attempt counter. Only the bcrypt hash is stored.
func (s *AuthService) StartOTP(ctx context.Context, name, phone string) (string, error) {
	code, err := generateOTP()
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cfg.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash otp: %w", err)
	}

	key := config.CacheKey.OTPKey(phone)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, otpFieldName, name, otpFieldHash, string(hash), otpFieldAttempts, 0)
		pipe.Expire(ctx, key, s.cfg.OTPTTL)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}

	s.log.Info().Str("phone", maskPhone(phone)).Dur("ttl", s.cfg.OTPTTL).Msg("OTP issued")
	return code, nil
}

// VerifyOTP checks code against the pending OTP. A wrong code consumes one
// attempt; running out of attempts burns the OTP. On success the user is
// upserted and a token issued.
func (s *AuthService) VerifyOTP(ctx context.Context, phone, code string) (*model.User, string, error) {
	key := config.CacheKey.OTPKey(phone)

	pending, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, "", fmt.Errorf("load otp: %w", err)
	}
	if len(pending) == 0 || pending[otpFieldHash] == "" {
		return nil, "", ErrOTPExpired
	}

	attempts, _ := strconv.Atoi(pending[otpFieldAttempts])
	if attempts >= s.cfg.OTPMaxAttempts {
		s.rdb.Del(ctx, key)
		return nil, "", ErrOTPLocked
	}

	if bcrypt.CompareHashAndPassword([]byte(pending[otpFieldHash]), []byte(code)) != nil {
		n, err := s.rdb.HIncrBy(ctx, key, otpFieldAttempts, 1).Result()
		if err != nil {
			return nil, "", fmt.Errorf("count attempt: %w", err)
		}
		if int(n) >= s.cfg.OTPMaxAttempts {
			s.rdb.Del(ctx, key)
			s.log.Warn().Str("phone", maskPhone(phone)).Msg("OTP burned after too many attempts")
			return nil, "", ErrOTPLocked
		}
		return nil, "", ErrOTPInvalid
	}

	// Only the request whose DEL removes the key may sign in.
	claimed, err := s.rdb.Del(ctx, key).Result()
	if err != nil {
		return nil, "", fmt.Errorf("consume otp: %w", err)
	}
	if claimed == 0 {
		return nil, "", ErrOTPExpired
	}

	user, err := s.users.UpsertOnLogin(ctx, pending[otpFieldName], phone)
	if err != nil {
		return nil, "", fmt.Errorf("upsert user: %w", err)
	}

	token, err := s.issueToken(ctx, user)
	if err != nil {
		return nil, "", err
	}

	s.log.Info().Str("phone", maskPhone(phone)).Msg("User signed in")
	return user, token, nil
}

// issueToken signs a JWT and records its id as the phone's only active
// login. A newer login invalidates older tokens.
func (s *AuthService) issueToken(ctx context.Context, user *model.User) (string, error) {
	jti := uuid.New().String()
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   user.Phone,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		Phone: user.Phone,
		Name:  user.Name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	if err := s.rdb.Set(ctx, config.CacheKey.LoginSessionKey(user.Phone), jti, s.cfg.JWTExpiry).Err(); err != nil {
		return "", fmt.Errorf("store login session: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Phone == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// ValidateLoginSession checks that jti is the phone's active login.
func (s *AuthService) ValidateLoginSession(ctx context.Context, phone, jti string) error {
	stored, err := s.rdb.Get(ctx, config.CacheKey.LoginSessionKey(phone)).Result()
	if errors.Is(err, redis.Nil) {
		return ErrSessionInvalidated
	}
	if err != nil {
		return fmt.Errorf("check login session: %w", err)
	}
	if stored != jti {
		return ErrSessionInvalidated
	}
	return nil
}

// Logout ends the phone's active login.
func (s *AuthService) Logout(ctx context.Context, phone string) error {
	return s.rdb.Del(ctx, config.CacheKey.LoginSessionKey(phone)).Err()
}

// Me returns the stored user record.
func (s *AuthService) Me(ctx context.Context, phone string) (*model.User, error) {
	return s.users.GetByPhone(ctx, phone)
}

func generateOTP() (string, error) {
	limit := big.NewInt(1)
	for range otpDigits {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

// maskPhone keeps the last four digits for logs.
func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
