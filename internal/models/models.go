package models

import "time"

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	QuotaLimit   int64     `json:"quota_limit_bytes"`
	QuotaUsed    int64     `json:"quota_used_bytes"`
	CreatedAt    time.Time `json:"created_at"`
}

// FileRecord is the ledger's view of one stored object. StorageKey is the
// opaque handle into the blob store; once committed it is never reused.
// TokenWatermark is the minimum issued-at time a share token must carry to
// still be honored; revocation bumps it forward.
type FileRecord struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	Filename       string    `json:"filename"`
	ContentType    string    `json:"content_type"`
	SizeBytes      int64     `json:"size_bytes"`
	StorageKey     string    `json:"-"`
	DownloadCount  int64     `json:"download_count"`
	TokenWatermark time.Time `json:"-"`
	FolderID       *string   `json:"folder_id"`
	CreatedAt      time.Time `json:"created_at"`
}

type Folder struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	ParentID  *string   `json:"parent_id"`
	CreatedAt time.Time `json:"created_at"`
}

type StorageInfo struct {
	Limit int64 `json:"limit"`
	Used  int64 `json:"used"`
	Free  int64 `json:"free"`
}

// UserUsage is the admin view of one user's quota consumption.
type UserUsage struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	QuotaLimit int64  `json:"quota_limit_bytes"`
	QuotaUsed  int64  `json:"quota_used_bytes"`
	FileCount  int    `json:"file_count"`
}

type FileDownloads struct {
	FileID        string `json:"file_id"`
	Filename      string `json:"filename"`
	DownloadCount int64  `json:"download_count"`
}

// MetricsSnapshot is a derived, read-only view over the ledger. It is never
// the source of truth and is always recomputable from users + files state.
type MetricsSnapshot struct {
	TotalUsers     int             `json:"total_users"`
	TotalFiles     int             `json:"total_files"`
	TotalBytes     int64           `json:"total_bytes"`
	TotalDownloads int64           `json:"total_downloads"`
	TopUsers       []UserUsage     `json:"top_users"`
	Downloads      []FileDownloads `json:"downloads"`
}
