package services

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"caseflow-api/config"
	"caseflow-api/models"

	"golang.org/x/crypto/pbkdf2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const monitorTokenPurpose = "monitor"

type MonitorTokenService struct {
	db     *gorm.DB
	secret []byte
}

func NewMonitorTokenService(db *gorm.DB) *MonitorTokenService {
	if db == nil {
		db = config.DB
	}
	secret := os.Getenv("MONITOR_TOKEN_SECRET")
	if secret == "" {
		secret = os.Getenv("JWT_SECRET")
	}
	return &MonitorTokenService{db: db, secret: []byte(secret)}
}

// deriveToken is deterministic: re-requesting a token before using the first
// one yields the same credential. The salt is scoped by job type so tokens
// for different job kinds never collide even with equal IDs.
func (s *MonitorTokenService) deriveToken(tenantID, userID, jobID uint, jobType string) string {
	material := fmt.Sprintf("%d|%d|%d|%s", tenantID, userID, jobID, monitorTokenPurpose)
	salt := append([]byte(jobType), s.secret...)
	key := pbkdf2.Key([]byte(material), salt, 4096, 32, sha256.New)
	return hex.EncodeToString(key)
}

// Issue mints (or re-mints, idempotently) the polling token for a job.
func (s *MonitorTokenService) Issue(ctx context.Context, tenantID, userID, jobID uint, jobType string) (string, error) {
	token := s.deriveToken(tenantID, userID, jobID, jobType)
	row := &models.MonitorToken{
		Token:    token,
		TenantID: tenantID,
		UserID:   userID,
		JobID:    jobID,
		JobType:  jobType,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row).Error
	if err != nil {
		return "", err
	}
	return token, nil
}

// Verify reports whether token authorizes polling jobID. Mismatch, a revoked
// token, and a token minted for a different job all report false; callers
// respond as if the job does not exist.
func (s *MonitorTokenService) Verify(ctx context.Context, token string, jobID uint) (bool, error) {
	var row models.MonitorToken
	err := s.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(row.Token), []byte(token)) == 1, nil
}

// Lookup loads the token row by its value.
func (s *MonitorTokenService) Lookup(ctx context.Context, token string) (*models.MonitorToken, error) {
	var row models.MonitorToken
	err := s.db.WithContext(ctx).
		Where("token = ?", token).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Revoke removes the token once the client reports monitor completion,
// preventing indefinite reuse. Revoking an unknown token is a no-op.
func (s *MonitorTokenService) Revoke(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).
		Where("token = ?", token).
		Delete(&models.MonitorToken{}).Error
}

// RevokeForJob removes whatever token exists for a job (drop path).
func (s *MonitorTokenService) RevokeForJob(ctx context.Context, jobID uint) error {
	return s.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Delete(&models.MonitorToken{}).Error
}
