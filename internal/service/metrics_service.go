package service

import (
	"github.com/minidrive/minidrive/internal/models"
	"github.com/minidrive/minidrive/internal/repository"
)

// MetricsService derives aggregate usage views from the ledger. Everything it
// returns is recomputable; it holds no state of its own.
type MetricsService struct {
	userRepo *repository.UserRepository
	fileRepo *repository.FileRepository
}

func NewMetricsService(userRepo *repository.UserRepository, fileRepo *repository.FileRepository) *MetricsService {
	return &MetricsService{userRepo: userRepo, fileRepo: fileRepo}
}

const topUsersLimit = 5

// Snapshot computes the current aggregate view: totals plus the heaviest
// users and per-file download counts.
func (s *MetricsService) Snapshot() (*models.MetricsSnapshot, error) {
	totalUsers, err := s.userRepo.Count()
	if err != nil {
		return nil, err
	}
	totalFiles, err := s.fileRepo.CountAll()
	if err != nil {
		return nil, err
	}
	totalBytes, err := s.fileRepo.SumAllSizes()
	if err != nil {
		return nil, err
	}
	totalDownloads, err := s.fileRepo.SumDownloads()
	if err != nil {
		return nil, err
	}

	usage, err := s.userRepo.ListUsage()
	if err != nil {
		return nil, err
	}
	topUsers := make([]models.UserUsage, 0, topUsersLimit)
	for i, u := range usage {
		if i == topUsersLimit {
			break
		}
		topUsers = append(topUsers, *u)
	}

	downloadRows, err := s.fileRepo.ListDownloadCounts()
	if err != nil {
		return nil, err
	}
	downloads := make([]models.FileDownloads, 0, len(downloadRows))
	for _, d := range downloadRows {
		downloads = append(downloads, *d)
	}

	return &models.MetricsSnapshot{
		TotalUsers:     totalUsers,
		TotalFiles:     totalFiles,
		TotalBytes:     totalBytes,
		TotalDownloads: totalDownloads,
		TopUsers:       topUsers,
		Downloads:      downloads,
	}, nil
}

// ListUsers returns per-user usage for the admin view.
func (s *MetricsService) ListUsers() ([]*models.UserUsage, error) {
	return s.userRepo.ListUsage()
}

// TotalBytes reports the ledger-wide stored byte count, used to feed the
// storage gauge.
func (s *MetricsService) TotalBytes() (int64, error) {
	return s.fileRepo.SumAllSizes()
}
