package auth

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"mailpanel/internal/platform/config"
	"mailpanel/internal/platform/models"
	"mailpanel/internal/platform/repositories"
	pkgerrors "mailpanel/internal/pkg/errors"
)

const (
	KindAccess  = "access"
	KindRefresh = "refresh"

	issuer = "mailpanel"
)

type Claims struct {
	UserID    string `json:"uid"`
	TenantID  string `json:"tid,omitempty"`
	Hierarchy int    `json:"hier"`
	Kind      string `json:"kind"`
	jwt.RegisteredClaims
}

// Credential is an issued access/refresh pair.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// TokenService issues and verifies signed credentials. Every issuance writes
// one server-side token record so refresh tokens can be rotated and revoked
// independently of signature expiry.
type TokenService struct {
	config    config.JWTConfig
	tokenRepo *repositories.TokenRepository
	userRepo  *repositories.UserRepository
	now       func() time.Time
}

func NewTokenService(cfg config.JWTConfig, tokenRepo *repositories.TokenRepository, userRepo *repositories.UserRepository) *TokenService {
	return &TokenService{
		config:    cfg,
		tokenRepo: tokenRepo,
		userRepo:  userRepo,
		now:       time.Now,
	}
}

// Issue signs a credential pair bound to the user's tenant and hierarchy at
// issuance time and persists the backing token record.
func (s *TokenService) Issue(user *models.User) (*Credential, error) {
	cred, record, err := s.mint(user)
	if err != nil {
		return nil, err
	}
	if err := s.tokenRepo.Insert(record); err != nil {
		return nil, err
	}
	return cred, nil
}

func (s *TokenService) mint(user *models.User) (*Credential, *models.TokenRecord, error) {
	now := s.now()
	tenantID := ""
	if user.TenantID != nil {
		tenantID = *user.TenantID
	}

	access, err := s.sign(Claims{
		UserID:    user.ID,
		TenantID:  tenantID,
		Hierarchy: user.Hierarchy,
		Kind:      KindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	})
	if err != nil {
		return nil, nil, err
	}

	refreshExpiry := now.Add(s.config.RefreshTokenTTL)
	refresh, err := s.sign(Claims{
		UserID:    user.ID,
		TenantID:  tenantID,
		Hierarchy: user.Hierarchy,
		Kind:      KindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(refreshExpiry),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			ID:        uuid.NewString(),
		},
	})
	if err != nil {
		return nil, nil, err
	}

	record := &models.TokenRecord{
		ID:          "tok_" + uuid.NewString(),
		UserID:      user.ID,
		RefreshHash: hashToken(refresh),
		ExpiresAt:   refreshExpiry.Unix(),
		CreatedAt:   now.Unix(),
	}

	return &Credential{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	}, record, nil
}

func (s *TokenService) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Secret))
}

// Verify checks signature, expiry, kind and that the owning user is still
// active. Refresh tokens additionally require a live server-side record so a
// rotated or revoked refresh value stops working before its signature expires.
// Every failure is reported as the uniform authentication error.
func (s *TokenService) Verify(tokenString, expectedKind string) (*Claims, error) {
	claims, err := s.decode(tokenString)
	if err != nil {
		return nil, pkgerrors.ErrAuthenticationFailed
	}
	if claims.Kind != expectedKind {
		return nil, pkgerrors.ErrAuthenticationFailed
	}

	now := s.now()
	// exp == now counts as expired.
	if claims.ExpiresAt == nil || !claims.ExpiresAt.Time.After(now) {
		return nil, pkgerrors.ErrAuthenticationFailed
	}

	user, err := s.userRepo.GetByID(claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.Active {
		return nil, pkgerrors.ErrAuthenticationFailed
	}

	if expectedKind == KindRefresh {
		record, err := s.tokenRepo.GetByRefreshHash(hashToken(tokenString))
		if err != nil {
			return nil, err
		}
		if record == nil || record.ExpiresAt <= now.Unix() {
			return nil, pkgerrors.ErrAuthenticationFailed
		}
	}

	return claims, nil
}

func (s *TokenService) decode(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Refresh redeems a refresh token for a new credential pair. The backing
// record is replaced in one transaction, so the old refresh value can never
// be redeemed twice; the loser of a concurrent rotation fails uniformly.
func (s *TokenService) Refresh(refreshToken string) (*Credential, error) {
	claims, err := s.Verify(refreshToken, KindRefresh)
	if err != nil {
		return nil, err
	}

	record, err := s.tokenRepo.GetByRefreshHash(hashToken(refreshToken))
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, pkgerrors.ErrAuthenticationFailed
	}

	// Re-read the user so a hierarchy or tenant change since issuance lands
	// in the new claims.
	user, err := s.userRepo.GetByID(claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.Active {
		return nil, pkgerrors.ErrAuthenticationFailed
	}

	cred, newRecord, err := s.mint(user)
	if err != nil {
		return nil, err
	}

	if err := s.tokenRepo.Replace(record.ID, newRecord); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkgerrors.ErrAuthenticationFailed
		}
		return nil, err
	}

	return cred, nil
}

// Revoke drops every outstanding token record for a user.
func (s *TokenService) Revoke(userID string) error {
	return s.tokenRepo.DeleteByUser(userID)
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
