package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the verified identity carried by an admin access token.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

// TokenManager signs and verifies HS256 admin access tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration, issuer string) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("token secret required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: issuer,
		now:    time.Now,
	}, nil
}

// Generate issues an access token for subject.
func (tm *TokenManager) Generate(subject string) (string, time.Time, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, errors.New("subject required")
	}
	now := tm.now()
	exp := now.Add(tm.ttl)
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": exp.Unix(),
		"typ": "access",
		"jti": uuid.NewString(),
	}
	if tm.issuer != "" {
		claims["iss"] = tm.issuer
	}
	token, err := tm.sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// Validate verifies the signature, expiry, issuer and token type.
func (tm *TokenManager) Validate(token string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	}
	if tm.issuer != "" {
		opts = append(opts, jwt.WithIssuer(tm.issuer))
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return tm.secret, nil
	}, opts...)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if typ, _ := claims["typ"].(string); typ != "" && typ != "access" {
		return Claims{}, fmt.Errorf("%w: unexpected token type %q", ErrInvalidToken, typ)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	out := Claims{Subject: sub}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

func (tm *TokenManager) sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
