package repository

import (
	"database/sql"

	"github.com/minidrive/minidrive/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(user *models.User) error {
	isAdmin := 0
	if user.IsAdmin {
		isAdmin = 1
	}
	_, err := r.db.Exec(`
		INSERT INTO users (id, email, full_name, password_hash, is_admin, quota_limit_bytes, quota_used_bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, user.ID, user.Email, user.FullName, user.PasswordHash, isAdmin, user.QuotaLimit, user.QuotaUsed, user.CreatedAt)
	return err
}

func (r *UserRepository) GetByID(id string) (*models.User, error) {
	return r.scanOne(r.db.QueryRow(`
		SELECT id, email, full_name, password_hash, is_admin, quota_limit_bytes, quota_used_bytes, created_at
		FROM users WHERE id = ?
	`, id))
}

func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	return r.scanOne(r.db.QueryRow(`
		SELECT id, email, full_name, password_hash, is_admin, quota_limit_bytes, quota_used_bytes, created_at
		FROM users WHERE email = ? COLLATE NOCASE
	`, email))
}

func (r *UserRepository) scanOne(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var isAdmin int
	err := row.Scan(&user.ID, &user.Email, &user.FullName, &user.PasswordHash, &isAdmin, &user.QuotaLimit, &user.QuotaUsed, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	user.IsAdmin = isAdmin == 1
	return user, nil
}

func (r *UserRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// ReserveQuota atomically checks the quota and debits the requested bytes in
// a single conditional UPDATE; the ledger row acts as the per-user
// serialization point, so concurrent reservations can never overcommit.
// Returns true if the reservation was taken.
func (r *UserRepository) ReserveQuota(id string, size int64) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE users SET quota_used_bytes = quota_used_bytes + ?
		WHERE id = ? AND (quota_limit_bytes - quota_used_bytes) >= ?
	`, size, id, size)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// ReleaseQuota credits bytes back, clamped at zero so a double release can
// never drive the counter negative.
func (r *UserRepository) ReleaseQuota(id string, size int64) error {
	_, err := r.db.Exec(`
		UPDATE users SET quota_used_bytes = MAX(0, quota_used_bytes - ?) WHERE id = ?
	`, size, id)
	return err
}

func (r *UserRepository) GetStorageInfo(id string) (*models.StorageInfo, error) {
	info := &models.StorageInfo{}
	err := r.db.QueryRow(`
		SELECT quota_limit_bytes, quota_used_bytes FROM users WHERE id = ?
	`, id).Scan(&info.Limit, &info.Used)
	if err != nil {
		return nil, err
	}
	info.Free = info.Limit - info.Used
	return info, nil
}

// ReconcileQuotaUsage recomputes every user's consumed quota from the sum of
// their live file sizes. Run at startup so reservations abandoned by a crash
// never leak past a restart.
func (r *UserRepository) ReconcileQuotaUsage() error {
	_, err := r.db.Exec(`
		UPDATE users SET quota_used_bytes = COALESCE(
			(SELECT SUM(f.size_bytes) FROM files f WHERE f.owner_id = users.id), 0)
	`)
	return err
}

// SumFileSizes returns the total size of a user's live files, used as an
// independent consistency check against quota_used_bytes.
func (r *UserRepository) SumFileSizes(id string) (int64, error) {
	var total int64
	err := r.db.QueryRow(`
		SELECT COALESCE(SUM(size_bytes), 0) FROM files WHERE owner_id = ?
	`, id).Scan(&total)
	return total, err
}

func (r *UserRepository) ListUsage() ([]*models.UserUsage, error) {
	rows, err := r.db.Query(`
		SELECT u.id, u.email, u.full_name, u.quota_limit_bytes, u.quota_used_bytes,
		       COUNT(f.id) AS file_count
		FROM users u
		LEFT JOIN files f ON f.owner_id = u.id
		GROUP BY u.id
		ORDER BY u.quota_used_bytes DESC, u.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.UserUsage
	for rows.Next() {
		u := &models.UserUsage{}
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.QuotaLimit, &u.QuotaUsed, &u.FileCount); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
