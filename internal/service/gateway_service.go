package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/minidrive/minidrive/internal/blob"
	"github.com/minidrive/minidrive/internal/models"
	"github.com/minidrive/minidrive/internal/repository"
	"github.com/minidrive/minidrive/pkg/logger"
	"github.com/minidrive/minidrive/pkg/sanitize"
)

// GatewayService owns the upload/download/delete lifecycle. It sits between
// the quota ledger (users table), the file ledger (files table) and the blob
// store, and is the only component allowed to move bytes between them.
type GatewayService struct {
	fileRepo    *repository.FileRepository
	userRepo    *repository.UserRepository
	store       blob.Store
	maxFileSize int64

	// locks serializes metadata transitions per file so a delete and a
	// download can never interleave their ledger updates. Blob I/O is never
	// performed while holding a lock.
	locks *keyMutex
}

func NewGatewayService(fileRepo *repository.FileRepository, userRepo *repository.UserRepository, store blob.Store, maxFileSize int64) *GatewayService {
	return &GatewayService{
		fileRepo:    fileRepo,
		userRepo:    userRepo,
		store:       store,
		maxFileSize: maxFileSize,
		locks:       newKeyMutex(),
	}
}

// Upload spools the stream to a temp file to learn its true size, reserves
// quota, writes the blob, then commits the ledger record. Any failure after
// the reservation releases it; any failure after the blob write also removes
// the blob. The declared size from the client is never trusted.
func (s *GatewayService) Upload(ctx context.Context, ownerID, filename, contentType string, r io.Reader, folderID *string) (*models.FileRecord, error) {
	tmp, err := os.CreateTemp("", "minidrive-upload-*")
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	size, err := io.Copy(tmp, io.LimitReader(r, s.maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("spool upload: %w", err)
	}
	if size > s.maxFileSize {
		return nil, ErrTooLarge
	}

	if strings.TrimSpace(contentType) == "" || contentType == "application/octet-stream" {
		contentType = s.detectContentType(tmp)
	}

	ok, err := s.userRepo.ReserveQuota(ownerID, size)
	if err != nil {
		return nil, fmt.Errorf("reserve quota: %w", err)
	}
	if !ok {
		return nil, ErrQuotaExceeded
	}

	key := "uploads/" + strings.ReplaceAll(uuid.NewString(), "-", "")

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		s.release(ownerID, size)
		return nil, fmt.Errorf("rewind spool file: %w", err)
	}
	if err := s.store.Put(ctx, key, tmp, size); err != nil {
		s.release(ownerID, size)
		logger.Error().Err(err).Str("key", key).Msg("blob write failed")
		return nil, fmt.Errorf("%w: %v", ErrStorageBackend, err)
	}

	record := &models.FileRecord{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		Filename:       sanitize.Filename(filename),
		ContentType:    contentType,
		SizeBytes:      size,
		StorageKey:     key,
		TokenWatermark: time.Unix(0, 0).UTC(),
		FolderID:       folderID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.fileRepo.Create(record); err != nil {
		s.release(ownerID, size)
		if delErr := s.store.Delete(ctx, key); delErr != nil && !errors.Is(delErr, blob.ErrNotFound) {
			logger.Error().Err(delErr).Str("key", key).Msg("orphan blob after failed commit")
		}
		return nil, fmt.Errorf("commit file record: %w", err)
	}

	logger.Audit("file_uploaded", ownerID, map[string]string{
		"file_id": record.ID,
		"size":    strconv.FormatInt(size, 10),
	})
	return record, nil
}

func (s *GatewayService) detectContentType(tmp *os.File) string {
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return "application/octet-stream"
	}
	mt, err := mimetype.DetectReader(tmp)
	if err != nil {
		return "application/octet-stream"
	}
	return mt.String()
}

func (s *GatewayService) release(ownerID string, size int64) {
	if err := s.userRepo.ReleaseQuota(ownerID, size); err != nil {
		logger.Error().Err(err).Str("user_id", ownerID).Msg("quota release failed")
	}
}

// Get returns the file record after an ownership check. Admins may read any
// record.
func (s *GatewayService) Get(requesterID string, isAdmin bool, fileID string) (*models.FileRecord, error) {
	record, err := s.fileRepo.GetByID(fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if record.OwnerID != requesterID && !isAdmin {
		return nil, ErrForbidden
	}
	return record, nil
}

func (s *GatewayService) List(ownerID string) ([]*models.FileRecord, error) {
	return s.fileRepo.ListByOwner(ownerID)
}

func (s *GatewayService) StorageInfo(userID string) (*models.StorageInfo, error) {
	info, err := s.userRepo.GetStorageInfo(userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return info, nil
}

// Download opens the blob for an authenticated owner (or admin). The download
// counter is bumped at request accept time, before any bytes move, under the
// per-file lock so a concurrent delete sees either the pre- or post-download
// ledger, never a torn state.
func (s *GatewayService) Download(ctx context.Context, requesterID string, isAdmin bool, fileID string) (*models.FileRecord, io.ReadCloser, error) {
	record, err := s.acceptDownload(fileID, func(r *models.FileRecord) error {
		if r.OwnerID != requesterID && !isAdmin {
			return ErrForbidden
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return s.openBlob(ctx, record)
}

// DownloadShared is the anonymous path used after a share token resolves.
// The token has already proven access, so there is no ownership check.
func (s *GatewayService) DownloadShared(ctx context.Context, fileID string) (*models.FileRecord, io.ReadCloser, error) {
	record, err := s.acceptDownload(fileID, nil)
	if err != nil {
		return nil, nil, err
	}
	return s.openBlob(ctx, record)
}

// PresignShared returns a backend-native URL for the blob, or
// blob.ErrPresignUnsupported when the backend cannot mint one. The download
// is counted only once the URL exists, so an unsupported backend can fall
// back to DownloadShared without double counting.
func (s *GatewayService) PresignShared(ctx context.Context, fileID string, ttl time.Duration) (*models.FileRecord, string, error) {
	record, err := s.fileRepo.GetByID(fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", ErrNotFound
		}
		return nil, "", err
	}

	url, err := s.store.Presign(ctx, record.StorageKey, ttl)
	if err != nil {
		if errors.Is(err, blob.ErrPresignUnsupported) {
			return record, "", err
		}
		return nil, "", fmt.Errorf("%w: %v", ErrStorageBackend, err)
	}

	record, err = s.acceptDownload(fileID, nil)
	if err != nil {
		return nil, "", err
	}
	return record, url, nil
}

// acceptDownload loads the record, runs the access check and bumps the
// counter, all under the per-file lock. A record that disappears between the
// read and the bump means a delete won the race, reported as ErrNotFound.
func (s *GatewayService) acceptDownload(fileID string, check func(*models.FileRecord) error) (*models.FileRecord, error) {
	s.locks.Lock(fileID)
	defer s.locks.Unlock(fileID)

	record, err := s.fileRepo.GetByID(fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if check != nil {
		if err := check(record); err != nil {
			return nil, err
		}
	}

	ok, err := s.fileRepo.IncrementDownloadCount(fileID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	record.DownloadCount++
	return record, nil
}

func (s *GatewayService) openBlob(ctx context.Context, record *models.FileRecord) (*models.FileRecord, io.ReadCloser, error) {
	body, err := s.store.Get(ctx, record.StorageKey)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			logger.Error().Str("file_id", record.ID).Str("key", record.StorageKey).Msg("ledger references missing blob")
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrStorageBackend, err)
	}
	return record, body, nil
}

// Delete removes the ledger record under the per-file lock, credits the quota
// back, then deletes the blob outside the lock. A blob that cannot be removed
// is logged and left for reconciliation; the ledger is already consistent.
func (s *GatewayService) Delete(ctx context.Context, requesterID string, isAdmin bool, fileID string) error {
	s.locks.Lock(fileID)

	record, err := s.fileRepo.GetByID(fileID)
	if err != nil {
		s.locks.Unlock(fileID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if record.OwnerID != requesterID && !isAdmin {
		s.locks.Unlock(fileID)
		return ErrForbidden
	}

	deleted, err := s.fileRepo.Delete(fileID)
	if err != nil {
		s.locks.Unlock(fileID)
		return err
	}
	if !deleted {
		s.locks.Unlock(fileID)
		return ErrNotFound
	}
	s.release(record.OwnerID, record.SizeBytes)
	s.locks.Unlock(fileID)

	if err := s.store.Delete(ctx, record.StorageKey); err != nil && !errors.Is(err, blob.ErrNotFound) {
		logger.Error().Err(err).Str("key", record.StorageKey).Msg("blob delete failed, orphan left behind")
	}

	logger.Audit("file_deleted", requesterID, map[string]string{
		"file_id": fileID,
		"size":    strconv.FormatInt(record.SizeBytes, 10),
	})
	return nil
}

// ReconcileQuotaUsage rebuilds every user's consumed-quota counter from the
// file ledger. Called at startup and periodically.
func (s *GatewayService) ReconcileQuotaUsage() error {
	return s.userRepo.ReconcileQuotaUsage()
}
