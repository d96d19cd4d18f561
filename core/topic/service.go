package topic

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/temario/core"
	"github.com/trezcool/temario/core/user"
)

var (
	// errors
	ErrNotFound     = errors.New("topic not found")
	ErrForbidden    = errors.New("permission denied")
	ErrInvalidState = errors.New("operation not allowed in the topic's current status")
	ErrStaleTopic   = errors.New("topic was modified by someone else, reload and try again")

	nowFunc = func() time.Time { return time.Now().UTC() } // mockable
)

type (
	Repository interface {
		CreateTopic(ctx context.Context, t Topic) (Topic, error)
		GetTopic(ctx context.Context, id string) (Topic, error)
		// QueryTopics applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Topic.Title or Topic.Description.
		QueryTopics(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Topic, error)
		// UpdateTopic saves t only if the stored version still is t.Version, then bumps it;
		// returns ErrStaleTopic otherwise. EditPermissions are left untouched, see SetEditors.
		UpdateTopic(ctx context.Context, t Topic) (Topic, error)
		SetEditors(ctx context.Context, topicID string, userIDs []string) error
		DeleteTopics(ctx context.Context, ids ...string) error
	}

	// UserFinder resolves topic owners & collaborators.
	UserFinder interface {
		GetByID(id string) (user.User, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, usr *user.User, nt NewTopic) (Topic, error)
		Get(ctx context.Context, usr *user.User, id string) (Topic, error)
		Query(ctx context.Context, usr *user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Topic, error)
		Update(ctx context.Context, usr *user.User, id string, data UpdateTopic) (Topic, error)
		Delete(ctx context.Context, usr *user.User, id string) error
		SubmitForReview(ctx context.Context, usr *user.User, id string) (Topic, error)
		Approve(ctx context.Context, usr *user.User, id string) (Topic, error)
		Reject(ctx context.Context, usr *user.User, id string, rc ReviewComment) (Topic, error)
		RequestChanges(ctx context.Context, usr *user.User, id string, rc ReviewComment) (Topic, error)
		RequestEdit(ctx context.Context, usr *user.User, id string, er EditRequest) (Topic, error)
		ApproveEditRequest(ctx context.Context, usr *user.User, id string) (Topic, error)
		RejectEditRequest(ctx context.Context, usr *user.User, id string) (Topic, error)
		Archive(ctx context.Context, usr *user.User, id string) (Topic, error)
		Restore(ctx context.Context, usr *user.User, id string) (Topic, error)
		SetCollaborators(ctx context.Context, usr *user.User, id string, data Collaborators) (Topic, error)
		PurgeArchived(ctx context.Context, cutoff time.Time) (int, error)
	}

	Service struct {
		repo    Repository
		users   UserFinder
		mailSvc core.EmailService
		logger  core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, users UserFinder, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		users:   users,
		mailSvc: mailSvc,
		logger:  logger,
	}
}

// Create stores a new draft owned by usr, in usr's organization.
func (svc *Service) Create(ctx context.Context, usr *user.User, nt NewTopic) (Topic, error) {
	if !CanCreate(usr) {
		return Topic{}, ErrForbidden
	}
	now := nowFunc()
	t := Topic{
		Title:           nt.Title,
		Description:     nt.Description,
		Content:         nt.Content,
		Status:          StatusDraft,
		Visibility:      nt.Visibility,
		CreatedBy:       usr.ID,
		OrganizationID:  usr.OrganizationID,
		EditPermissions: []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	t, err := svc.repo.CreateTopic(ctx, t)
	if err != nil {
		return Topic{}, errors.Wrap(err, "creating topic")
	}
	return t, nil
}

// Get returns the topic if usr may view it. Hidden topics are reported as ErrNotFound.
func (svc *Service) Get(ctx context.Context, usr *user.User, id string) (Topic, error) {
	t, err := svc.repo.GetTopic(ctx, id)
	if err != nil {
		return Topic{}, err
	}
	if !CanView(usr, &t) {
		return Topic{}, ErrNotFound
	}
	return t, nil
}

// Query returns the topics matching filter that usr may view.
func (svc *Service) Query(ctx context.Context, usr *user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Topic, error) {
	topics, err := svc.repo.QueryTopics(ctx, filter, ordering)
	if err != nil {
		return nil, errors.Wrap(err, "querying topics")
	}
	return FilterByPermissions(topics, usr), nil
}

func (svc *Service) Update(ctx context.Context, usr *user.User, id string, data UpdateTopic) (Topic, error) {
	return svc.transition(ctx, usr, id, CanEdit, func(t *Topic) error {
		if data.Title != "" {
			t.Title = data.Title
		}
		if data.Description != nil {
			t.Description = core.CleanString(*data.Description)
		}
		if data.Content != nil {
			t.Content = *data.Content
		}
		if data.Visibility != "" {
			t.Visibility = data.Visibility
		}
		return nil
	})
}

func (svc *Service) Delete(ctx context.Context, usr *user.User, id string) error {
	t, err := svc.repo.GetTopic(ctx, id)
	if err != nil {
		return err
	}
	if !CanView(usr, &t) {
		return ErrNotFound
	}
	if !CanDelete(usr, &t) {
		return ErrForbidden
	}
	return svc.repo.DeleteTopics(ctx, t.ID)
}

func (svc *Service) SubmitForReview(ctx context.Context, usr *user.User, id string) (Topic, error) {
	return svc.transition(ctx, usr, id, CanSubmitForReview, func(t *Topic) error {
		t.Status = StatusPendingReview
		t.ReviewComments = ""
		return nil
	})
}

func (svc *Service) Approve(ctx context.Context, usr *user.User, id string) (Topic, error) {
	t, err := svc.review(ctx, usr, id, StatusApproved, "")
	if err != nil {
		return Topic{}, err
	}
	svc.notifyOwner(t, "approved", "")
	return t, nil
}

func (svc *Service) Reject(ctx context.Context, usr *user.User, id string, rc ReviewComment) (Topic, error) {
	t, err := svc.review(ctx, usr, id, StatusRejected, rc.Comments)
	if err != nil {
		return Topic{}, err
	}
	svc.notifyOwner(t, "rejected", t.ReviewComments)
	return t, nil
}

func (svc *Service) RequestChanges(ctx context.Context, usr *user.User, id string, rc ReviewComment) (Topic, error) {
	t, err := svc.review(ctx, usr, id, StatusChangesRequested, rc.Comments)
	if err != nil {
		return Topic{}, err
	}
	svc.notifyOwner(t, "changes requested", t.ReviewComments)
	return t, nil
}

// review moves a pending topic to outcome. Comments are mandatory unless approving,
// checked only once usr is known to be allowed to review t.
func (svc *Service) review(ctx context.Context, usr *user.User, id string, outcome Status, comments string) (Topic, error) {
	comments = core.CleanString(comments)
	return svc.transition(ctx, usr, id, CanReview, func(t *Topic) error {
		if t.Status != StatusPendingReview {
			return ErrInvalidState
		}
		if outcome != StatusApproved && comments == "" {
			return core.NewFieldValidationError("comments", "this field is required")
		}
		t.Status = outcome
		t.ReviewComments = comments
		t.ReviewedBy = usr.ID
		t.ReviewedAt = nowFunc()
		return nil
	})
}

func (svc *Service) RequestEdit(ctx context.Context, usr *user.User, id string, er EditRequest) (Topic, error) {
	return svc.transition(ctx, usr, id, CanRequestEdit, func(t *Topic) error {
		t.EditRequestPending = true
		t.EditRequestReason = core.CleanString(er.Reason)
		return nil
	})
}

// ApproveEditRequest re-opens the topic in the editing status.
func (svc *Service) ApproveEditRequest(ctx context.Context, usr *user.User, id string) (Topic, error) {
	t, err := svc.transition(ctx, usr, id, CanResolveEditRequest, func(t *Topic) error {
		t.Status = StatusEditing
		t.EditRequestPending = false
		t.EditRequestReason = ""
		return nil
	})
	if err != nil {
		return Topic{}, err
	}
	svc.notifyOwner(t, "edit request approved", "")
	return t, nil
}

// RejectEditRequest clears the pending request, the topic keeps its status.
func (svc *Service) RejectEditRequest(ctx context.Context, usr *user.User, id string) (Topic, error) {
	t, err := svc.transition(ctx, usr, id, CanResolveEditRequest, func(t *Topic) error {
		t.EditRequestPending = false
		t.EditRequestReason = ""
		return nil
	})
	if err != nil {
		return Topic{}, err
	}
	svc.notifyOwner(t, "edit request rejected", "")
	return t, nil
}

func (svc *Service) Archive(ctx context.Context, usr *user.User, id string) (Topic, error) {
	return svc.transition(ctx, usr, id, CanArchive, func(t *Topic) error {
		if t.Status == StatusArchived {
			return ErrInvalidState
		}
		t.Status = StatusArchived
		t.ArchivedAt = nowFunc()
		t.EditRequestPending = false
		t.EditRequestReason = ""
		return nil
	})
}

// Restore brings an archived topic back as a draft.
func (svc *Service) Restore(ctx context.Context, usr *user.User, id string) (Topic, error) {
	return svc.transition(ctx, usr, id, CanArchive, func(t *Topic) error {
		if !CanRestore(usr, t) {
			return ErrInvalidState
		}
		t.Status = StatusDraft
		t.ArchivedAt = time.Time{}
		return nil
	})
}

// SetCollaborators replaces the topic's collaborators. The owner is never listed.
func (svc *Service) SetCollaborators(ctx context.Context, usr *user.User, id string, data Collaborators) (Topic, error) {
	t, err := svc.repo.GetTopic(ctx, id)
	if err != nil {
		return Topic{}, err
	}
	if !CanView(usr, &t) {
		return Topic{}, ErrNotFound
	}
	if !CanManageCollaborators(usr, &t) {
		return Topic{}, ErrForbidden
	}

	ids := make([]string, 0, len(data.UserIDs))
	for _, uid := range core.CleanStrings(data.UserIDs) {
		if uid == t.CreatedBy {
			continue
		}
		if _, err := svc.users.GetByID(uid); err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				return Topic{}, core.NewFieldValidationError("user_ids", fmt.Sprintf("unknown user %q", uid))
			}
			return Topic{}, errors.Wrap(err, "finding collaborator")
		}
		ids = append(ids, uid)
	}

	if err = svc.repo.SetEditors(ctx, t.ID, ids); err != nil {
		return Topic{}, errors.Wrap(err, "setting collaborators")
	}
	t.EditPermissions = ids
	return t, nil
}

// PurgeArchived permanently deletes topics archived before cutoff and returns how many went.
func (svc *Service) PurgeArchived(ctx context.Context, cutoff time.Time) (int, error) {
	topics, err := svc.repo.QueryTopics(ctx, &QueryFilter{
		Statuses:       []Status{StatusArchived},
		ArchivedBefore: cutoff,
	}, nil)
	if err != nil {
		return 0, errors.Wrap(err, "querying archived topics")
	}
	if len(topics) == 0 {
		return 0, nil
	}
	ids := make([]string, 0, len(topics))
	for _, t := range topics {
		ids = append(ids, t.ID)
	}
	if err = svc.repo.DeleteTopics(ctx, ids...); err != nil {
		return 0, errors.Wrap(err, "deleting archived topics")
	}
	return len(ids), nil
}

// transition loads the topic, checks it is visible to usr and allowed by gate, applies the change
// and saves it against the version it was loaded with.
func (svc *Service) transition(
	ctx context.Context,
	usr *user.User,
	id string,
	gate func(*user.User, *Topic) bool,
	apply func(*Topic) error,
) (Topic, error) {
	t, err := svc.repo.GetTopic(ctx, id)
	if err != nil {
		return Topic{}, err
	}
	if !CanView(usr, &t) {
		return Topic{}, ErrNotFound
	}
	if !gate(usr, &t) {
		return Topic{}, ErrForbidden
	}

	if err = apply(&t); err != nil {
		return Topic{}, err
	}
	t.UpdatedAt = nowFunc()
	return svc.repo.UpdateTopic(ctx, t)
}

type reviewMailData struct {
	Name     string
	Title    string
	Outcome  string
	Comments string
	TopicID  string
}

func (svc *Service) notifyOwner(t Topic, outcome, comments string) {
	if svc.mailSvc == nil || svc.users == nil {
		return
	}
	owner, err := svc.users.GetByID(t.CreatedBy)
	if err != nil {
		if svc.logger != nil {
			svc.logger.Warn(fmt.Sprintf("notifying owner of topic %s: %v", t.ID, err), err)
		}
		return
	}
	if owner.Email == "" {
		return
	}
	name := owner.Name
	if name == "" {
		name = owner.Username
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: name, Address: owner.Email}},
		Subject:      fmt.Sprintf("Topic %q: %s", t.Title, outcome),
		TemplateName: "topic_reviewed",
		TemplateData: reviewMailData{
			Name:     name,
			Title:    t.Title,
			Outcome:  outcome,
			Comments: comments,
			TopicID:  t.ID,
		},
	})
}
