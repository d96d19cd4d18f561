package topic

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/temario/core"
)

// Status is the primary lifecycle state of a Topic.
type Status string

const (
	StatusDraft            Status = "draft"
	StatusPendingReview    Status = "pending_review"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
	StatusChangesRequested Status = "changes_requested"
	StatusEditing          Status = "editing" // approved topic re-opened by an accepted edit request
	StatusArchived         Status = "archived"
)

var AllStatuses = []Status{
	StatusDraft,
	StatusPendingReview,
	StatusApproved,
	StatusRejected,
	StatusChangesRequested,
	StatusEditing,
	StatusArchived,
}

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPendingReview, StatusApproved, StatusRejected,
		StatusChangesRequested, StatusEditing, StatusArchived:
		return true
	}
	return false
}

// Visibility governs read access once a Topic is approved.
type Visibility string

const (
	VisibilityPublic       Visibility = "public"
	VisibilityOrganization Visibility = "organization"
	VisibilityPrivate      Visibility = "private"
)

var AllVisibilities = []Visibility{VisibilityPublic, VisibilityOrganization, VisibilityPrivate}

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityOrganization, VisibilityPrivate:
		return true
	}
	return false
}

// Topic is the governed educational document.
// CreatedBy and EditPermissions always hold plain user IDs.
type Topic struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	Content            string     `json:"content"`
	Status             Status     `json:"status"`
	Visibility         Visibility `json:"visibility"`
	CreatedBy          string     `json:"created_by"`
	OrganizationID     string     `json:"organization_id,omitempty"`
	EditPermissions    []string   `json:"edit_permissions"`
	EditRequestPending bool       `json:"edit_request_pending"`
	EditRequestReason  string     `json:"edit_request_reason,omitempty"`
	ReviewComments     string     `json:"review_comments,omitempty"`
	ReviewedBy         string     `json:"reviewed_by,omitempty"`
	ReviewedAt         time.Time  `json:"reviewed_at"` // UTC
	ArchivedAt         time.Time  `json:"archived_at"` // UTC
	CreatedAt          time.Time  `json:"created_at"`  // UTC
	UpdatedAt          time.Time  `json:"updated_at"`  // UTC
	Version            int        `json:"version"`     // bumped on every save
}

// IsPubliclyVisible reports whether anyone, even anonymous, may read t.
func (t *Topic) IsPubliclyVisible() bool {
	return t.Status == StatusApproved && t.Visibility == VisibilityPublic
}

// IsCollaborator reports whether userID was granted edit rights on t.
func (t *Topic) IsCollaborator(userID string) bool {
	if userID == "" {
		return false
	}
	for _, id := range t.EditPermissions {
		if id == userID {
			return true
		}
	}
	return false
}

// NewTopic contains information needed to create a new Topic.
type NewTopic struct {
	Title       string     `json:"title" validate:"required,max=255"`
	Description string     `json:"description"`
	Content     string     `json:"content"`
	Visibility  Visibility `json:"visibility" validate:"required,visibility"`
}

func (nt *NewTopic) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanString(nt.Description)
	nt.Visibility = Visibility(core.CleanString(string(nt.Visibility), true /* lower */))
	return validate.Struct(nt)
}

// UpdateTopic defines what information may be provided to modify an existing Topic.
// Empty fields keep their current value.
type UpdateTopic struct {
	Title       string     `json:"title" validate:"max=255"`
	Description *string    `json:"description"`
	Content     *string    `json:"content"`
	Visibility  Visibility `json:"visibility" validate:"omitempty,visibility"`
}

func (ut *UpdateTopic) Validate(validate *validator.Validate) error {
	ut.Title = core.CleanString(ut.Title)
	ut.Visibility = Visibility(core.CleanString(string(ut.Visibility), true /* lower */))
	return validate.Struct(ut)
}

// ReviewComment carries the reviewer's mandatory comments on reject & request-changes.
type ReviewComment struct {
	Comments string `json:"comments" validate:"required"`
}

func (rc *ReviewComment) Validate(validate *validator.Validate) error {
	rc.Comments = core.CleanString(rc.Comments)
	return validate.Struct(rc)
}

type EditRequest struct {
	Reason string `json:"reason"`
}

type Collaborators struct {
	UserIDs []string `json:"user_ids"`
}

type QueryFilter struct {
	Search         string     `query:"search"`
	Statuses       []Status   `query:"status"`
	Visibility     Visibility `query:"visibility"`
	OrganizationID string     `query:"organization_id"`
	CreatedBy      string     `query:"created_by"`
	ArchivedBefore time.Time  `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.OrganizationID = core.CleanString(qf.OrganizationID)
	qf.CreatedBy = core.CleanString(qf.CreatedBy)
}
