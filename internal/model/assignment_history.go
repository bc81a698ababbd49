package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	HistoryActionAssigned = "assigned"
	HistoryActionOverride = "override"
)

// AssignmentHistory is the append-only audit trail of an assignment.
// Seq is unique per assignment and equals the assignment Version that the
// entry produced; the original decision is always Seq 1.
type AssignmentHistory struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	AssignmentID    uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_history_assignment_seq,priority:1"`
	Seq             int              `gorm:"not null;uniqueIndex:idx_history_assignment_seq,priority:2"`
	Action          string           `gorm:"type:varchar(20);not null"` // assigned | override
	VendorID        string           `gorm:"type:varchar(64);not null"`
	VendorName      string           `gorm:"not null;default:''"`
	Price           decimal.Decimal  `gorm:"type:decimal(14,4);not null"`
	Currency        string           `gorm:"type:char(3);not null"`
	NormalizedPrice *decimal.Decimal `gorm:"type:decimal(14,4)"`
	Confidence      decimal.Decimal  `gorm:"type:decimal(5,4);not null"`
	Reason          string           `gorm:"not null"`
	Actor           string           `gorm:"not null"`
	CreatedAt       time.Time
}

func (AssignmentHistory) TableName() string { return "assignment_history" }
