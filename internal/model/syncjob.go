package model

import (
	"time"

	"github.com/google/uuid"
)

type SyncJobType string

const (
	JobProductSync   SyncJobType = "product_sync"
	JobInventoryPush SyncJobType = "inventory_push"
	JobOrderFetch    SyncJobType = "order_fetch"
)

type SyncJobStatus string

const (
	JobPending   SyncJobStatus = "pending"
	JobRunning   SyncJobStatus = "running"
	JobCompleted SyncJobStatus = "completed"
	JobFailed    SyncJobStatus = "failed"
)

// SyncJob is one unit of orchestrated work against a single store. Status
// only ever moves pending → running → completed|failed, and at all times
// ItemsProcessed + ItemsFailed <= ItemsTotal.
type SyncJob struct {
	BaseModel
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;index" json:"organization_id"`
	StoreID        uuid.UUID `gorm:"type:uuid;not null;index" json:"store_id"`
	Store          *Store    `gorm:"foreignKey:StoreID;constraint:OnDelete:CASCADE" json:"-"`

	JobType SyncJobType   `gorm:"type:varchar(20);not null" json:"job_type"`
	Status  SyncJobStatus `gorm:"type:varchar(20);not null;default:pending;index" json:"status"`

	ItemsTotal     int    `gorm:"not null;default:0" json:"items_total"`
	ItemsProcessed int    `gorm:"not null;default:0" json:"items_processed"`
	ItemsFailed    int    `gorm:"not null;default:0" json:"items_failed"`
	RetryCount     int    `gorm:"not null;default:0" json:"retry_count"`
	ErrorMessage   string `json:"error_message,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Logs []SyncLog `gorm:"foreignKey:SyncJobID" json:"logs,omitempty"`
}

type SyncLogLevel string

const (
	LogInfo    SyncLogLevel = "info"
	LogWarning SyncLogLevel = "warning"
	LogError   SyncLogLevel = "error"
)

// SyncLog is an append-only diagnostic row for one job. Never mutated.
type SyncLog struct {
	BaseModel
	SyncJobID uuid.UUID    `gorm:"type:uuid;not null;index" json:"sync_job_id"`
	SyncJob   *SyncJob     `gorm:"foreignKey:SyncJobID;constraint:OnDelete:CASCADE" json:"-"`
	Level     SyncLogLevel `gorm:"type:varchar(10);not null" json:"level"`
	Message   string       `gorm:"not null" json:"message"`
	Details   JSON         `gorm:"type:jsonb" json:"details,omitempty"`
}
