package warranty

import (
	"time"

	"github.com/zombor/warrantysafe/internal/access"
	"github.com/zombor/warrantysafe/internal/record"
	"github.com/zombor/warrantysafe/internal/scanning"
)

// StartingCredits is the balance a new account is seeded with
const StartingCredits = 5

// Warranty is a stored warranty record owned by a user
type Warranty struct {
	ID          string              `json:"id"`
	UserID      string              `json:"user_id"`
	Record      record.Record       `json:"record"`
	Filename    string              `json:"filename"`
	ContentType string              `json:"content_type"`
	Provenance  scanning.Provenance `json:"provenance"`
	ArchivePath string              `json:"archive_path,omitempty"` // premium cloud backup of the original file
	RemindedAt  *time.Time          `json:"reminded_at,omitempty"`  // when the expiring-soon reminder went out
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// Account tracks a user's upload allowance
type Account struct {
	UserID         string    `json:"user_id"`
	FreeUploadUsed bool      `json:"free_upload_used"`
	Credits        int       `json:"credits"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Caller identifies who is making a request
type Caller struct {
	UserID        string
	Authenticated bool
}

// WarrantyView is a stored warranty as a particular caller may see it
type WarrantyView struct {
	ID         string              `json:"id"`
	Filename   string              `json:"filename"`
	Provenance scanning.Provenance `json:"provenance"`
	HasArchive bool                `json:"has_archive"`
	CreatedAt  time.Time           `json:"created_at"`
	access.View
}

// ScanResult is the unsaved outcome of scanning a document
type ScanResult struct {
	Filename   string              `json:"filename"`
	Provenance scanning.Provenance `json:"provenance"`
	Confidence float32             `json:"confidence"`
	access.View
}

// AccountStatus is what a user sees about their own plan
type AccountStatus struct {
	Account
	Plan           string `json:"plan"`
	CanUpload      bool   `json:"can_upload"`
	FreeUploadLeft bool   `json:"free_upload_left"`
}
