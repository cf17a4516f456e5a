// Package token はアクセストークン（JWT）とリフレッシュトークンを発行・検証する。
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/sociallogin/internal/model"
)

// BearerPrefix はAuthorizationヘッダーで使用するトークン種別のプレフィックス。
const BearerPrefix = "Bearer "

// refreshTokenBytes はリフレッシュトークンの乱数バイト長。
const refreshTokenBytes = 32

// Config はトークン発行の設定。
type Config struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Now はテスト用に差し替え可能な現在時刻関数。nilの場合はtime.Now。
	Now func() time.Time
}

// Claims は検証済みアクセストークンのクレーム。
type Claims struct {
	AccountID string
	Email     string
	Platform  string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// accessClaims はJWTのエンコード・デコードに使用する内部クレーム型。
type accessClaims struct {
	jwt.RegisteredClaims
	Email    string `json:"email"`
	Platform string `json:"platform"`
}

// Issuer はHS256で署名したアクセストークンと、不透明なリフレッシュトークンを発行する。
type Issuer struct {
	cfg Config
}

// NewIssuer はIssuerを生成する。
func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("token issuer is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token TTLs must be positive")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Issuer{cfg: cfg}, nil
}

// GenerateAccessToken はアカウントの識別情報を署名したJWTを返す。
// 戻り値には "Bearer " プレフィックスを含まない。
func (i *Issuer) GenerateAccessToken(subject model.TokenSubject) (string, error) {
	if subject.AccountID == "" {
		return "", errors.New("token subject is required")
	}

	now := i.cfg.Now().UTC()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.AccountID,
			Issuer:    i.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.AccessTTL)),
		},
		Email:    subject.Email,
		Platform: subject.Platform,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// GenerateRefreshToken は暗号論的乱数から生成した16進文字列のトークンを返す。
func (i *Issuer) GenerateRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ParseAccessToken はアクセストークンを検証してクレームを返す。
// "Bearer " プレフィックス付きの値も受け付ける。
// 検証失敗はすべてmodel.ErrInvalidTokenをラップして返す。
func (i *Issuer) ParseAccessToken(raw string) (*Claims, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), BearerPrefix))
	if raw == "" {
		return nil, fmt.Errorf("%w: token is empty", model.ErrInvalidToken)
	}

	var parsed accessClaims
	_, err := jwt.ParseWithClaims(raw, &parsed, func(t *jwt.Token) (any, error) {
		return i.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.cfg.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidToken, err)
	}
	if parsed.Subject == "" {
		return nil, fmt.Errorf("%w: subject is missing", model.ErrInvalidToken)
	}

	claims := &Claims{
		AccountID: parsed.Subject,
		Email:     parsed.Email,
		Platform:  parsed.Platform,
		Issuer:    parsed.Issuer,
		ExpiresAt: parsed.ExpiresAt.Time.UTC(),
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// RefreshTTL はリフレッシュトークンの有効期間を返す。
func (i *Issuer) RefreshTTL() time.Duration {
	return i.cfg.RefreshTTL
}

// Now は発行者が基準とする現在時刻を返す。
func (i *Issuer) Now() time.Time {
	return i.cfg.Now()
}

// HashRefreshToken は保存用にリフレッシュトークンのSHA-256ハッシュを返す。
func HashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
