package service

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/minidrive/minidrive/internal/models"
	"github.com/minidrive/minidrive/internal/repository"
)

type FolderService struct {
	folderRepo *repository.FolderRepository
	fileRepo   *repository.FileRepository
}

func NewFolderService(folderRepo *repository.FolderRepository, fileRepo *repository.FileRepository) *FolderService {
	return &FolderService{folderRepo: folderRepo, fileRepo: fileRepo}
}

func (s *FolderService) Create(ownerID, name string, parentID *string) (*models.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("folder name must not be empty")
	}

	if parentID != nil {
		if err := s.checkOwnership(*parentID, ownerID); err != nil {
			return nil, err
		}
	}

	taken, err := s.folderRepo.ExistsByName(ownerID, name, parentID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrNameTaken
	}

	folder := &models.Folder{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		ParentID:  parentID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.folderRepo.Create(folder); err != nil {
		return nil, err
	}
	return folder, nil
}

func (s *FolderService) List(ownerID string, parentID *string) ([]*models.Folder, error) {
	return s.folderRepo.ListByOwner(ownerID, parentID)
}

func (s *FolderService) Rename(ownerID, folderID, name string) (*models.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("folder name must not be empty")
	}

	folder, err := s.getOwned(folderID, ownerID)
	if err != nil {
		return nil, err
	}

	taken, err := s.folderRepo.ExistsByName(ownerID, name, folder.ParentID)
	if err != nil {
		return nil, err
	}
	if taken && folder.Name != name {
		return nil, ErrNameTaken
	}

	if err := s.folderRepo.Rename(folderID, name); err != nil {
		return nil, err
	}
	folder.Name = name
	return folder, nil
}

// Move reparents a folder. The destination must belong to the same owner, a
// folder cannot become its own parent, and the name must stay unique under
// the destination.
func (s *FolderService) Move(ownerID, folderID string, newParentID *string) (*models.Folder, error) {
	folder, err := s.getOwned(folderID, ownerID)
	if err != nil {
		return nil, err
	}

	if newParentID != nil {
		if *newParentID == folderID {
			return nil, errors.New("folder cannot be its own parent")
		}
		if err := s.checkOwnership(*newParentID, ownerID); err != nil {
			return nil, err
		}
	}

	taken, err := s.folderRepo.ExistsByName(ownerID, folder.Name, newParentID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrNameTaken
	}

	if err := s.folderRepo.SetParent(folderID, newParentID); err != nil {
		return nil, err
	}
	folder.ParentID = newParentID
	return folder, nil
}

// Delete removes an empty folder. Folders containing files or subfolders are
// refused rather than cascaded.
func (s *FolderService) Delete(ownerID, folderID string) error {
	if _, err := s.getOwned(folderID, ownerID); err != nil {
		return err
	}

	files, err := s.fileRepo.CountByFolder(folderID)
	if err != nil {
		return err
	}
	children, err := s.folderRepo.CountChildren(folderID)
	if err != nil {
		return err
	}
	if files > 0 || children > 0 {
		return ErrFolderNotEmpty
	}

	return s.folderRepo.Delete(folderID)
}

func (s *FolderService) getOwned(folderID, ownerID string) (*models.Folder, error) {
	folder, err := s.folderRepo.GetByID(folderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if folder.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return folder, nil
}

func (s *FolderService) checkOwnership(folderID, ownerID string) error {
	_, err := s.getOwned(folderID, ownerID)
	return err
}
