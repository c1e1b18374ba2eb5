package repository

import (
	"database/sql"
	"time"

	"github.com/minidrive/minidrive/internal/models"
)

type FileRepository struct {
	db *sql.DB
}

func NewFileRepository(db *sql.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(file *models.FileRecord) error {
	_, err := r.db.Exec(`
		INSERT INTO files (id, owner_id, filename, content_type, size_bytes, storage_key, download_count, token_watermark, folder_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, file.ID, file.OwnerID, file.Filename, file.ContentType, file.SizeBytes, file.StorageKey, file.DownloadCount, file.TokenWatermark, file.FolderID, file.CreatedAt)
	return err
}

const fileColumns = `id, owner_id, filename, content_type, size_bytes, storage_key, download_count, token_watermark, folder_id, created_at`

func scanFile(row interface {
	Scan(dest ...interface{}) error
}) (*models.FileRecord, error) {
	file := &models.FileRecord{}
	err := row.Scan(&file.ID, &file.OwnerID, &file.Filename, &file.ContentType, &file.SizeBytes, &file.StorageKey, &file.DownloadCount, &file.TokenWatermark, &file.FolderID, &file.CreatedAt)
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (r *FileRepository) GetByID(id string) (*models.FileRecord, error) {
	return scanFile(r.db.QueryRow(`SELECT `+fileColumns+` FROM files WHERE id = ?`, id))
}

func (r *FileRepository) ListByOwner(ownerID string) ([]*models.FileRecord, error) {
	rows, err := r.db.Query(`
		SELECT `+fileColumns+` FROM files WHERE owner_id = ? ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*models.FileRecord
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

// Delete removes the record and reports whether a row was actually deleted,
// so racing deleters observe exactly one winner.
func (r *FileRepository) Delete(id string) (bool, error) {
	result, err := r.db.Exec(`DELETE FROM files WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// IncrementDownloadCount bumps the counter only while the record still
// exists; false means the file vanished under the caller.
func (r *FileRepository) IncrementDownloadCount(id string) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE files SET download_count = download_count + 1 WHERE id = ?
	`, id)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// SetTokenWatermark invalidates all share tokens issued before t.
func (r *FileRepository) SetTokenWatermark(id string, t time.Time) error {
	_, err := r.db.Exec(`UPDATE files SET token_watermark = ? WHERE id = ?`, t, id)
	return err
}

func (r *FileRepository) CountByFolder(folderID string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM files WHERE folder_id = ?`, folderID).Scan(&count)
	return count, err
}

func (r *FileRepository) CountAll() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM files`).Scan(&count)
	return count, err
}

func (r *FileRepository) SumAllSizes() (int64, error) {
	var total int64
	err := r.db.QueryRow(`SELECT COALESCE(SUM(size_bytes), 0) FROM files`).Scan(&total)
	return total, err
}

func (r *FileRepository) SumDownloads() (int64, error) {
	var total int64
	err := r.db.QueryRow(`SELECT COALESCE(SUM(download_count), 0) FROM files`).Scan(&total)
	return total, err
}

func (r *FileRepository) ListDownloadCounts() ([]*models.FileDownloads, error) {
	rows, err := r.db.Query(`
		SELECT id, filename, download_count FROM files ORDER BY download_count DESC, created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []*models.FileDownloads
	for rows.Next() {
		d := &models.FileDownloads{}
		if err := rows.Scan(&d.FileID, &d.Filename, &d.DownloadCount); err != nil {
			return nil, err
		}
		counts = append(counts, d)
	}
	return counts, rows.Err()
}
