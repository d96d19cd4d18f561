package topic

import "github.com/trezcool/temario/core/user"

// The permission engine: pure decisions over (user, topic). A nil user or topic always denies,
// except for reading approved public topics. Super users bypass every role rule; once past that
// check, unknown roles or statuses deny.

// sameOrganization requires both sides to belong to the same, non-empty organization.
func sameOrganization(usr *user.User, t *Topic) bool {
	return t.OrganizationID != "" && t.OrganizationID == usr.OrganizationID
}

func isOwner(usr *user.User, t *Topic) bool {
	return usr.ID != "" && usr.ID == t.CreatedBy
}

func wellFormed(usr *user.User, t *Topic) bool {
	return usr.Role.Valid() && t.Status.Valid() && t.Visibility.Valid()
}

// CanCreate reports whether usr may author new topics (teachers and admins).
func CanCreate(usr *user.User) bool {
	if usr == nil {
		return false
	}
	if usr.IsSuper {
		return true
	}
	return usr.Role == user.RoleTeacher || usr.Role == user.RoleAdmin
}

// CanEdit reports whether usr may modify t.
// Approved topics are frozen to their author: only admins of the topic's organization may edit them.
// Collaborators listed in EditPermissions are not consulted.
func CanEdit(usr *user.User, t *Topic) bool {
	if usr == nil || t == nil {
		return false
	}
	if usr.IsSuper {
		return true
	}
	if !wellFormed(usr, t) {
		return false
	}

	switch usr.Role {
	case user.RoleAdmin:
		return sameOrganization(usr, t)
	case user.RoleTeacher:
		if t.Status == StatusApproved {
			return false
		}
		return isOwner(usr, t) && (t.Status == StatusDraft || t.Status == StatusRejected)
	}
	return false
}

// CanEditContent reports whether usr may edit the content blocks of t. Same rule as CanEdit.
func CanEditContent(usr *user.User, t *Topic) bool {
	return CanEdit(usr, t)
}

// CanEditQuizzes reports whether usr may edit the quizzes attached to t.
func CanEditQuizzes(usr *user.User, t *Topic) bool {
	return CanEditContent(usr, t)
}

// CanDelete reports whether usr may delete t. Owners may only delete their drafts.
func CanDelete(usr *user.User, t *Topic) bool {
	if usr == nil || t == nil {
		return false
	}
	if usr.IsSuper {
		return true
	}
	if !wellFormed(usr, t) {
		return false
	}

	switch usr.Role {
	case user.RoleAdmin:
		return sameOrganization(usr, t)
	case user.RoleTeacher:
		return isOwner(usr, t) && t.Status == StatusDraft
	}
	return false
}

// CanReview reports whether usr may approve, reject or request changes on t.
// Topics without an organization can only be reviewed by super users.
func CanReview(usr *user.User, t *Topic) bool {
	if usr == nil || t == nil {
		return false
	}
	if usr.IsSuper {
		return true
	}
	if !wellFormed(usr, t) {
		return false
	}
	if usr.Role != user.RoleAdmin && usr.Role != user.RoleReviewer {
		return false
	}
	return sameOrganization(usr, t)
}

// CanSubmitForReview reports whether usr may send t to review.
// Only the owning teacher may, from draft or rejected; super users get no bypass here.
func CanSubmitForReview(usr *user.User, t *Topic) bool {
	if usr == nil || t == nil {
		return false
	}
	if !wellFormed(usr, t) {
		return false
	}
	return usr.Role == user.RoleTeacher &&
		isOwner(usr, t) &&
		(t.Status == StatusDraft || t.Status == StatusRejected)
}

// CanView reports whether usr may read t. usr may be nil for anonymous readers.
func CanView(usr *user.User, t *Topic) bool {
	if t == nil {
		return false
	}
	if t.IsPubliclyVisible() {
		return true
	}
	if usr == nil {
		return false
	}
	if usr.IsSuper {
		return true
	}
	if !wellFormed(usr, t) {
		return false
	}

	approvedForOrg := t.Status == StatusApproved &&
		(t.Visibility == VisibilityPublic || sameOrganization(usr, t))

	switch usr.Role {
	case user.RoleAdmin, user.RoleReviewer:
		return t.OrganizationID == "" || t.OrganizationID == usr.OrganizationID
	case user.RoleTeacher:
		return isOwner(usr, t) || approvedForOrg
	case user.RoleStudent:
		return approvedForOrg
	}
	return false
}

// CanArchive reports whether usr may move t to the archive.
func CanArchive(usr *user.User, t *Topic) bool {
	if usr == nil || t == nil {
		return false
	}
	if usr.IsSuper {
		return true
	}
	if !wellFormed(usr, t) {
		return false
	}
	return usr.Role == user.RoleAdmin && sameOrganization(usr, t)
}

// CanRestore reports whether usr may bring t back from the archive.
func CanRestore(usr *user.User, t *Topic) bool {
	if t == nil || t.Status != StatusArchived {
		return false
	}
	return CanArchive(usr, t)
}

// CanRequestEdit reports whether usr may ask to re-open approved topic t for editing.
func CanRequestEdit(usr *user.User, t *Topic) bool {
	if usr == nil || t == nil {
		return false
	}
	if !wellFormed(usr, t) {
		return false
	}
	if t.Status != StatusApproved || t.EditRequestPending {
		return false
	}
	if usr.Role != user.RoleTeacher && usr.Role != user.RoleAdmin {
		return false
	}
	return isOwner(usr, t) || t.IsCollaborator(usr.ID)
}

// CanResolveEditRequest reports whether usr may accept or turn down the pending edit request on t.
func CanResolveEditRequest(usr *user.User, t *Topic) bool {
	if usr == nil || t == nil || !t.EditRequestPending {
		return false
	}
	if usr.IsSuper {
		return true
	}
	if !wellFormed(usr, t) {
		return false
	}
	return usr.Role == user.RoleAdmin && sameOrganization(usr, t)
}

// CanManageCollaborators reports whether usr may change who else can edit t.
func CanManageCollaborators(usr *user.User, t *Topic) bool {
	if usr == nil || t == nil {
		return false
	}
	if usr.IsSuper {
		return true
	}
	if !wellFormed(usr, t) {
		return false
	}
	switch usr.Role {
	case user.RoleAdmin:
		return sameOrganization(usr, t)
	case user.RoleTeacher:
		return isOwner(usr, t)
	}
	return false
}
