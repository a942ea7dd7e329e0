package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the access token claims. The principal id is the subject.
type Claims struct {
	jwt.RegisteredClaims
}

// JWT validates and mints HS256 access tokens.
type JWT struct {
	signingKey []byte
	issuer     string
	audience   string
	now        func() time.Time
}

// NewJWT returns a JWT service. Empty issuer or audience are not checked.
func NewJWT(secret, issuer, audience string) *JWT {
	return &JWT{signingKey: []byte(secret), issuer: issuer, audience: audience, now: time.Now}
}

// Mint signs a token for subject that expires after ttl.
func (j *JWT) Mint(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("auth: empty subject")
	}
	now := j.now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    j.issuer,
		ID:        uuid.NewString(),
	}}
	if j.audience != "" {
		claims.Audience = jwt.ClaimStrings{j.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.signingKey)
}

// Validate parses tokenString and checks its signature, expiry, issuer and
// audience.
func (j *JWT) Validate(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.now),
		jwt.WithExpirationRequired(),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}
	if j.audience != "" {
		opts = append(opts, jwt.WithAudience(j.audience))
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return j.signingKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Authenticate implements Authenticator.
func (j *JWT) Authenticate(token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrNoAuth
	}
	claims, err := j.Validate(token)
	if err != nil {
		return Principal{}, err
	}
	return Principal{ID: claims.Subject}, nil
}
