package topic

import "github.com/trezcool/temario/core/user"

// Action tags a control the presentation layer may offer on a topic.
type Action string

const (
	ActionView         Action = "view"
	ActionEdit         Action = "edit"
	ActionDelete       Action = "delete"
	ActionSubmitReview Action = "submit-review"
	ActionApprove      Action = "approve"
	ActionReject       Action = "reject"
	ActionArchive      Action = "archive"
)

// AvailableActions lists what usr may do with t, in this fixed order:
// view, edit, delete, submit-review, approve, reject, archive.
// approve & reject only show up while t is pending review.
func AvailableActions(usr *user.User, t *Topic) []Action {
	actions := make([]Action, 0, 7)
	if CanView(usr, t) {
		actions = append(actions, ActionView)
	}
	if CanEdit(usr, t) {
		actions = append(actions, ActionEdit)
	}
	if CanDelete(usr, t) {
		actions = append(actions, ActionDelete)
	}
	if CanSubmitForReview(usr, t) {
		actions = append(actions, ActionSubmitReview)
	}
	if CanReview(usr, t) && t.Status == StatusPendingReview {
		actions = append(actions, ActionApprove, ActionReject)
	}
	if CanArchive(usr, t) {
		actions = append(actions, ActionArchive)
	}
	return actions
}

// HasAction reports whether action is part of actions.
func HasAction(actions []Action, action Action) bool {
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}

// FilterByPermissions keeps the topics usr may view, preserving their order.
// Anonymous callers (nil usr) only get approved public topics.
func FilterByPermissions(topics []Topic, usr *user.User) []Topic {
	filtered := make([]Topic, 0, len(topics))
	for i := range topics {
		t := &topics[i]
		if usr == nil {
			if t.IsPubliclyVisible() {
				filtered = append(filtered, *t)
			}
			continue
		}
		if CanView(usr, t) {
			filtered = append(filtered, *t)
		}
	}
	return filtered
}
