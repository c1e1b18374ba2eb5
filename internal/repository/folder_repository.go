package repository

import (
	"database/sql"

	"github.com/minidrive/minidrive/internal/models"
)

type FolderRepository struct {
	db *sql.DB
}

func NewFolderRepository(db *sql.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

func (r *FolderRepository) Create(folder *models.Folder) error {
	_, err := r.db.Exec(`
		INSERT INTO folders (id, owner_id, name, parent_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, folder.ID, folder.OwnerID, folder.Name, folder.ParentID, folder.CreatedAt)
	return err
}

func (r *FolderRepository) GetByID(id string) (*models.Folder, error) {
	folder := &models.Folder{}
	err := r.db.QueryRow(`
		SELECT id, owner_id, name, parent_id, created_at FROM folders WHERE id = ?
	`, id).Scan(&folder.ID, &folder.OwnerID, &folder.Name, &folder.ParentID, &folder.CreatedAt)
	if err != nil {
		return nil, err
	}
	return folder, nil
}

// ListByOwner returns the folders directly under parentID, or the root-level
// folders when parentID is nil.
func (r *FolderRepository) ListByOwner(ownerID string, parentID *string) ([]*models.Folder, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if parentID == nil {
		rows, err = r.db.Query(`
			SELECT id, owner_id, name, parent_id, created_at
			FROM folders WHERE owner_id = ? AND parent_id IS NULL ORDER BY name
		`, ownerID)
	} else {
		rows, err = r.db.Query(`
			SELECT id, owner_id, name, parent_id, created_at
			FROM folders WHERE owner_id = ? AND parent_id = ? ORDER BY name
		`, ownerID, *parentID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var folders []*models.Folder
	for rows.Next() {
		folder := &models.Folder{}
		if err := rows.Scan(&folder.ID, &folder.OwnerID, &folder.Name, &folder.ParentID, &folder.CreatedAt); err != nil {
			return nil, err
		}
		folders = append(folders, folder)
	}
	return folders, rows.Err()
}

func (r *FolderRepository) Rename(id, name string) error {
	_, err := r.db.Exec(`UPDATE folders SET name = ? WHERE id = ?`, name, id)
	return err
}

func (r *FolderRepository) SetParent(id string, parentID *string) error {
	_, err := r.db.Exec(`UPDATE folders SET parent_id = ? WHERE id = ?`, parentID, id)
	return err
}

func (r *FolderRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM folders WHERE id = ?`, id)
	return err
}

// ExistsByName reports whether the owner already has a folder with this name
// under the same parent.
func (r *FolderRepository) ExistsByName(ownerID, name string, parentID *string) (bool, error) {
	var count int
	var err error
	if parentID == nil {
		err = r.db.QueryRow(`
			SELECT COUNT(*) FROM folders WHERE owner_id = ? AND name = ? AND parent_id IS NULL
		`, ownerID, name).Scan(&count)
	} else {
		err = r.db.QueryRow(`
			SELECT COUNT(*) FROM folders WHERE owner_id = ? AND name = ? AND parent_id = ?
		`, ownerID, name, *parentID).Scan(&count)
	}
	return count > 0, err
}

func (r *FolderRepository) CountChildren(id string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM folders WHERE parent_id = ?`, id).Scan(&count)
	return count, err
}
