package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// ErrInvalidToken covers bad signatures, expiry, malformed input and type
// mismatches alike. Callers cannot tell them apart.
var ErrInvalidToken = errors.New("invalid token")

var signingMethod = jwt.SigningMethodHS512

type JWTService struct {
	secret          []byte
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	now             func() time.Time
}

type Claims struct {
	Username string `json:"username,omitempty"`
	Type     string `json:"type"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: subject %q is not a user id", ErrInvalidToken, c.Subject)
	}
	return id, nil
}

func NewJWTService(secret string, accessTTL, refreshTTL time.Duration) *JWTService {
	return &JWTService{
		secret:          []byte(secret),
		accessTokenTTL:  accessTTL,
		refreshTokenTTL: refreshTTL,
		now:             time.Now,
	}
}

// IssueAccess signs an access token for the user and returns it with its expiry.
func (s *JWTService) IssueAccess(userID int64, username string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTokenTTL)

	token, err := s.sign(Claims{
		Username:         username,
		Type:             TokenTypeAccess,
		RegisteredClaims: registeredClaims(userID, now, expiresAt),
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	return token, expiresAt, nil
}

// IssueRefresh signs a refresh token. Refresh tokens never carry a username.
func (s *JWTService) IssueRefresh(userID int64) (string, error) {
	now := s.now()

	token, err := s.sign(Claims{
		Type:             TokenTypeRefresh,
		RegisteredClaims: registeredClaims(userID, now, now.Add(s.refreshTokenTTL)),
	})
	if err != nil {
		return "", fmt.Errorf("signing refresh token: %w", err)
	}
	return token, nil
}

// SubjectOf verifies signature and expiry and returns the user id in the
// subject claim.
func (s *JWTService) SubjectOf(tokenString string) (int64, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return 0, err
	}
	return claims.UserID()
}

func (s *JWTService) IsValid(tokenString string) bool {
	_, err := s.SubjectOf(tokenString)
	return err == nil
}

func (s *JWTService) ParseAccess(tokenString string) (*Claims, error) {
	return s.parseTyped(tokenString, TokenTypeAccess)
}

func (s *JWTService) ParseRefresh(tokenString string) (*Claims, error) {
	return s.parseTyped(tokenString, TokenTypeRefresh)
}

func (s *JWTService) parseTyped(tokenString, tokenType string) (*Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != tokenType {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrInvalidToken, tokenType, claims.Type)
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *JWTService) parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", ErrInvalidToken)
	}

	return claims, nil
}

func (s *JWTService) sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(signingMethod, claims).SignedString(s.secret)
}

func registeredClaims(userID int64, issuedAt, expiresAt time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
}
