package service

import (
	"database/sql"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/minidrive/minidrive/internal/models"
	"github.com/minidrive/minidrive/internal/repository"
	"github.com/minidrive/minidrive/pkg/logger"
)

// shareClaims is the payload of a share token. The token is the only state a
// share has; nothing is persisted at issuance.
type shareClaims struct {
	FileID string `json:"fid"`
	jwt.RegisteredClaims
}

// LinkService issues and resolves expiring share tokens. Tokens are signed
// HS256 JWTs carrying the file id, issued-at and expiry. Revocation works by
// bumping the file's token watermark: any token issued before the watermark
// is rejected, without tracking individual tokens.
type LinkService struct {
	fileRepo *repository.FileRepository
	secret   []byte
	maxTTL   time.Duration

	// now is injectable for deterministic expiry tests.
	now func() time.Time
}

func NewLinkService(fileRepo *repository.FileRepository, secret string, maxTTL time.Duration) *LinkService {
	return &LinkService{
		fileRepo: fileRepo,
		secret:   []byte(secret),
		maxTTL:   maxTTL,
		now:      time.Now,
	}
}

// Issue mints a share token for a file the requester owns. The requested TTL
// is clamped to [1s, maxTTL]; zero or negative requests get the maximum.
func (s *LinkService) Issue(requesterID string, isAdmin bool, fileID string, ttl time.Duration) (string, time.Time, error) {
	record, err := s.fileRepo.GetByID(fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", time.Time{}, ErrNotFound
		}
		return "", time.Time{}, err
	}
	if record.OwnerID != requesterID && !isAdmin {
		return "", time.Time{}, ErrForbidden
	}

	if ttl <= 0 || ttl > s.maxTTL {
		ttl = s.maxTTL
	}
	if ttl < time.Second {
		ttl = time.Second
	}

	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, shareClaims{
		FileID: fileID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	logger.Audit("share_issued", requesterID, map[string]string{
		"file_id":    fileID,
		"expires_at": expiresAt.Format(time.RFC3339),
	})
	return signed, expiresAt, nil
}

// Resolve validates a share token and returns the file it grants access to.
// Expired tokens report ErrTokenExpired; everything else that is wrong with
// the token collapses to ErrInvalidToken so callers leak nothing.
func (s *LinkService) Resolve(tokenString string) (*models.FileRecord, error) {
	claims := &shareClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if claims.FileID == "" || claims.IssuedAt == nil {
		return nil, ErrInvalidToken
	}

	record, err := s.fileRepo.GetByID(claims.FileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	// Tokens issued at or before the watermark were revoked. Claims carry
	// second precision, so the comparison errs on the side of rejecting.
	if !claims.IssuedAt.Time.After(record.TokenWatermark) {
		return nil, ErrInvalidToken
	}
	return record, nil
}

// Revoke invalidates every share token issued for the file so far by moving
// the watermark to now. Tokens issued afterwards are unaffected.
func (s *LinkService) Revoke(requesterID string, isAdmin bool, fileID string) error {
	record, err := s.fileRepo.GetByID(fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if record.OwnerID != requesterID && !isAdmin {
		return ErrForbidden
	}

	if err := s.fileRepo.SetTokenWatermark(fileID, s.now().UTC()); err != nil {
		return err
	}
	logger.Audit("shares_revoked", requesterID, map[string]string{"file_id": fileID})
	return nil
}

// MaxTTL reports the configured ceiling, used by handlers to derive presign
// lifetimes.
func (s *LinkService) MaxTTL() time.Duration {
	return s.maxTTL
}
