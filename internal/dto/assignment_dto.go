package dto

import (
	"time"

	"carmen/internal/model"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

// AssignPriceRequest is one purchase-request line to price.
// RequestedDate accepts RFC 3339 or YYYY-MM-DD; empty means now.
type AssignPriceRequest struct {
	PRItemID          *string         `json:"prItemId"          validate:"omitempty,max=64"`
	ProductID         string          `json:"productId"         validate:"required,max=64"`
	ProductName       string          `json:"productName"       validate:"max=200"`
	CategoryID        string          `json:"categoryId"        validate:"required,max=64"`
	Quantity          decimal.Decimal `json:"quantity"          validate:"required,gt=0"`
	RequestedDate     string          `json:"requestedDate"`
	Location          string          `json:"location"          validate:"max=64"`
	Department        string          `json:"department"        validate:"max=64"`
	PreferredCurrency string          `json:"preferredCurrency" validate:"omitempty,len=3"`
}

type OverrideRequest struct {
	NewVendorID string          `json:"newVendorId"`
	NewPrice    decimal.Decimal `json:"newPrice"`
	Currency    string          `json:"currency"`
	Reason      string          `json:"reason"`
	// OverriddenBy defaults to the authenticated user.
	OverriddenBy string `json:"overriddenBy"`
}

type BulkAssignRequest struct {
	Items []AssignPriceRequest `json:"items" validate:"required,min=1"`
}

type AnalyticsFilter struct {
	From string `form:"from"`
	To   string `form:"to"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type PriceAssignmentResponse struct {
	ID                 string              `json:"id"`
	PRItemID           *string             `json:"prItemId,omitempty"`
	ProductID          string              `json:"productId"`
	ProductName        string              `json:"productName,omitempty"`
	CategoryID         string              `json:"categoryId"`
	Quantity           decimal.Decimal     `json:"quantity"`
	Location           string              `json:"location,omitempty"`
	Department         string              `json:"department,omitempty"`
	RequestedDate      time.Time           `json:"requestedDate"`
	VendorID           string              `json:"vendorId"`
	VendorName         string              `json:"vendorName"`
	AssignedPrice      decimal.Decimal     `json:"assignedPrice"`
	Currency           string              `json:"currency"`
	NormalizedPrice    decimal.Decimal     `json:"normalizedPrice"`
	ComparisonCurrency string              `json:"comparisonCurrency"`
	ExchangeRate       decimal.Decimal     `json:"exchangeRate"`
	RateEpoch          time.Time           `json:"rateEpoch"`
	Confidence         decimal.Decimal     `json:"confidence"`
	AssignmentReason   string              `json:"assignmentReason"`
	RuleApplied        *AppliedRule        `json:"ruleApplied,omitempty"`
	RuleNotHonored     bool                `json:"ruleNotHonored"`
	RequiresReview     bool                `json:"requiresReview"`
	ReviewMessage      *string             `json:"reviewMessage,omitempty"`
	Alternatives       []model.Alternative `json:"alternatives"`
	NoAlternatives     bool                `json:"noAlternatives"`
	RuleSetVersion     int64               `json:"ruleSetVersion"`
	Current            CurrentAssignment   `json:"current"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

type AppliedRule struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CurrentAssignment is the vendor/price in force after any overrides.
type CurrentAssignment struct {
	VendorID        string           `json:"vendorId"`
	VendorName      string           `json:"vendorName"`
	Price           decimal.Decimal  `json:"price"`
	Currency        string           `json:"currency"`
	NormalizedPrice *decimal.Decimal `json:"normalizedPrice"`
	Overridden      bool             `json:"overridden"`
	OverrideCount   int              `json:"overrideCount"`
	Version         int              `json:"version"`
}

type HistoryEntryResponse struct {
	ID              string           `json:"id"`
	Sequence        int              `json:"sequence"`
	Action          string           `json:"action"`
	VendorID        string           `json:"vendorId"`
	VendorName      string           `json:"vendorName"`
	Price           decimal.Decimal  `json:"price"`
	Currency        string           `json:"currency"`
	NormalizedPrice *decimal.Decimal `json:"normalizedPrice"`
	Confidence      decimal.Decimal  `json:"confidence"`
	Reason          string           `json:"reason"`
	Actor           string           `json:"actor"`
	Timestamp       time.Time        `json:"timestamp"`
}

// BulkItemError is the structured failure of one bulk item.
type BulkItemError struct {
	Index     int    `json:"index"`
	ProductID string `json:"productId"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// BulkItemResult is one ordered outcome; exactly one of Assignment or Error is set.
type BulkItemResult struct {
	Index      int                      `json:"index"`
	Success    bool                     `json:"success"`
	Assignment *PriceAssignmentResponse `json:"assignment,omitempty"`
	Error      *BulkItemError           `json:"error,omitempty"`
}

type BulkSummary struct {
	TotalItems            int `json:"totalItems"`
	SuccessfulAssignments int `json:"successfulAssignments"`
	FailedAssignments     int `json:"failedAssignments"`
}

type BulkAssignmentResult struct {
	Results     []BulkItemResult          `json:"results"`
	Assignments []PriceAssignmentResponse `json:"assignments"`
	Errors      []BulkItemError           `json:"errors"`
	Summary     BulkSummary               `json:"summary"`
	Cancelled   bool                      `json:"cancelled"`
}

type BulkJobResponse struct {
	JobID  string                `json:"jobId"`
	Status string                `json:"status"` // queued | running | completed | failed
	Result *BulkAssignmentResult `json:"result,omitempty"`
	Error  string                `json:"error,omitempty"`
}

type AnalyticsPeriod struct {
	From *time.Time `json:"from"`
	To   *time.Time `json:"to"`
}

type AnalyticsResponse struct {
	TotalAssignments   int64           `json:"totalAssignments"`
	AutomationRate     decimal.Decimal `json:"automationRate"`
	AverageConfidence  decimal.Decimal `json:"averageConfidence"`
	OverrideRate       decimal.Decimal `json:"overrideRate"`
	RuleAppliedRate    decimal.Decimal `json:"ruleAppliedRate"`
	ReviewFlaggedCount int64           `json:"reviewFlaggedCount"`
	Period             AnalyticsPeriod `json:"period"`
}

type QueueStatus struct {
	Name            string        `json:"name"`
	PendingCount    int64         `json:"pendingCount"`
	ProcessingCount int64         `json:"processingCount"`
	FailedCount     int64         `json:"failedCount"`
	Status          string        `json:"status"` // idle | active | backlogged
	LastFailure     *QueueFailure `json:"lastFailure,omitempty"`
}

// QueueFailure is the latest dead-lettered job of a queue.
type QueueFailure struct {
	JobType  string    `json:"jobType"`
	Reason   string    `json:"reason"`
	Attempts int       `json:"attempts"`
	FailedAt time.Time `json:"failedAt"`
}

type RequeueRequest struct {
	Limit int `json:"limit" validate:"omitempty,min=1,max=1000"`
}

type RequeueResponse struct {
	Queue    string `json:"queue"`
	Requeued int    `json:"requeued"`
}

type QueueStatusResponse struct {
	Queues []QueueStatus `json:"queues"`
}
