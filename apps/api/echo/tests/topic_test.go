package tests

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/temario/apps/api/echo"
	"github.com/trezcool/temario/core/topic"
	"github.com/trezcool/temario/core/user"
	emailsvc "github.com/trezcool/temario/services/email"
	testutil "github.com/trezcool/temario/tests"
)

var (
	errTopicNotFound = httpErr{Error: topic.ErrNotFound.Error()}
	errInvalidState  = httpErr{Error: topic.ErrInvalidState.Error()}
)

type topicFixtures struct {
	admin, otherAdmin, reviewer, owner, teacher, student user.User
}

func createTopicFixtures(t *testing.T) topicFixtures {
	t.Helper()
	return topicFixtures{
		admin:      testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", user.RoleAdmin, "org-1", false),
		otherAdmin: testutil.CreateUser(t, usrRepo, "Other Admin", "admin2", "admin2@test.cd", "", user.RoleAdmin, "org-2", false),
		reviewer:   testutil.CreateUser(t, usrRepo, "Reviewer", "reviewer", "reviewer@test.cd", "", user.RoleReviewer, "org-1", false),
		owner:      testutil.CreateUser(t, usrRepo, "Owner", "owner", "owner@test.cd", "", user.RoleTeacher, "org-1", false),
		teacher:    testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.RoleTeacher, "org-1", false),
		student:    testutil.CreateUser(t, usrRepo, "Student", "student", "student@test.cd", "", user.RoleStudent, "org-1", false),
	}
}

func tokenOf(t *testing.T, usr user.User) string {
	if usr.ID == "" {
		return "" // anonymous
	}
	return getToken(t, usr)
}

// do sends the request and decodes a successful TopicResponse.
func do(t *testing.T, app http.Handler, method, path string, usr user.User, body []byte, wantCode int) echoapi.TopicResponse {
	t.Helper()
	req, rec := newAuthRequest(method, path, tokenOf(t, usr), body)
	app.ServeHTTP(rec, req)
	require.Equal(t, wantCode, rec.Code, rec.Body.String())

	var resp echoapi.TopicResponse
	if wantCode == http.StatusOK || wantCode == http.StatusCreated {
		decode(t, rec, &resp)
	}
	return resp
}

func Test_topicApi_query(t *testing.T) {
	app := setup(t)
	fx := createTopicFixtures(t)

	testutil.CreateTopic(t, topicRepo, fx.owner, "A draft", topic.StatusDraft, topic.VisibilityOrganization)
	testutil.CreateTopic(t, topicRepo, fx.owner, "B public", topic.StatusApproved, topic.VisibilityPublic)
	testutil.CreateTopic(t, topicRepo, fx.owner, "C organization", topic.StatusApproved, topic.VisibilityOrganization)
	testutil.CreateTopic(t, topicRepo, fx.owner, "D pending", topic.StatusPendingReview, topic.VisibilityPublic)

	path := func(ordering string, statuses ...topic.Status) string {
		v := make(url.Values)
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		for _, s := range statuses {
			v.Add("status", string(s))
		}
		return "/v1/topics?" + v.Encode()
	}

	tests := []struct {
		name       string
		path       string
		usr        user.User
		wantTitles []string
	}{
		{name: "anonymous", path: path("title"), wantTitles: []string{"B public"}},
		{name: "student", path: path("title"), usr: fx.student, wantTitles: []string{"B public", "C organization"}},
		{name: "other teacher", path: path("title"), usr: fx.teacher, wantTitles: []string{"B public", "C organization"}},
		{name: "owner", path: path("title"), usr: fx.owner, wantTitles: []string{"A draft", "B public", "C organization", "D pending"}},
		{name: "owner: ordering desc", path: path("-title"), usr: fx.owner, wantTitles: []string{"D pending", "C organization", "B public", "A draft"}},
		{name: "other organization admin", path: path("title"), usr: fx.otherAdmin, wantTitles: []string{"B public"}},
		{name: "reviewer: pending only", path: path("", topic.StatusPendingReview), usr: fx.reviewer, wantTitles: []string{"D pending"}},
		{name: "unknown status", path: path("", "lol"), usr: fx.admin, wantTitles: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tokenOf(t, tt.usr))
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var topics []echoapi.TopicResponse
			decode(t, rec, &topics)
			titles := make([]string, 0, len(topics))
			for _, tp := range topics {
				titles = append(titles, tp.Title)
			}
			assert.Equal(t, tt.wantTitles, titles)
		})
	}
}

func Test_topicApi_retrieve(t *testing.T) {
	app := setup(t)
	fx := createTopicFixtures(t)

	draft := testutil.CreateTopic(t, topicRepo, fx.owner, "Draft", topic.StatusDraft, topic.VisibilityPublic)
	pending := testutil.CreateTopic(t, topicRepo, fx.owner, "Pending", topic.StatusPendingReview, topic.VisibilityOrganization)
	public := testutil.CreateTopic(t, topicRepo, fx.owner, "Public", topic.StatusApproved, topic.VisibilityPublic)

	errTests := []httpTest{
		{name: "anonymous on draft", path: "/v1/topics/" + draft.ID, wantCode: http.StatusNotFound, wantData: marchallObj(t, errTopicNotFound)},
		{name: "unknown id", path: "/v1/topics/lol", token: getToken(t, fx.admin), wantCode: http.StatusNotFound, wantData: marchallObj(t, errTopicNotFound)},
		{
			name: "student on pending", path: "/v1/topics/" + pending.ID, token: getToken(t, fx.student),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errTopicNotFound),
		},
		{
			name: "bad token", path: "/v1/topics/" + public.ID, token: "lol",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "invalid or expired jwt"}),
		},
	}
	for i := range errTests {
		errTests[i].method = http.MethodGet
	}
	runTests(t, app, errTests)

	tests := []struct {
		name        string
		id          string
		usr         user.User
		wantActions []topic.Action
		wantBadge   topic.StatusBadge
	}{
		{
			name: "anonymous on public", id: public.ID,
			wantActions: []topic.Action{topic.ActionView},
			wantBadge:   topic.StatusBadgeFor(topic.StatusApproved),
		},
		{
			name: "owner on draft", id: draft.ID, usr: fx.owner,
			wantActions: []topic.Action{topic.ActionView, topic.ActionEdit, topic.ActionDelete, topic.ActionSubmitReview},
			wantBadge:   topic.StatusBadgeFor(topic.StatusDraft),
		},
		{
			name: "admin on pending", id: pending.ID, usr: fx.admin,
			wantActions: []topic.Action{
				topic.ActionView, topic.ActionEdit, topic.ActionDelete, topic.ActionApprove, topic.ActionReject, topic.ActionArchive,
			},
			wantBadge: topic.StatusBadgeFor(topic.StatusPendingReview),
		},
		{
			name: "reviewer on pending", id: pending.ID, usr: fx.reviewer,
			wantActions: []topic.Action{topic.ActionView, topic.ActionApprove, topic.ActionReject},
			wantBadge:   topic.StatusBadgeFor(topic.StatusPendingReview),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, app, http.MethodGet, "/v1/topics/"+tt.id, tt.usr, nil, http.StatusOK)
			assert.Equal(t, tt.id, resp.ID)
			assert.Equal(t, tt.wantActions, resp.Actions)
			assert.Equal(t, tt.wantBadge, resp.StatusBadge)
		})
	}

	t.Run("permissions", func(t *testing.T) {
		resp := do(t, app, http.MethodGet, "/v1/topics/"+public.ID, fx.owner, nil, http.StatusOK)
		assert.Equal(t, topic.VisibilityBadgeFor(topic.VisibilityPublic), resp.VisibilityBadge)
		assert.True(t, resp.Permissions["request_edit"])
		assert.True(t, resp.Permissions["manage_collaborators"])
		assert.False(t, resp.Permissions["edit_content"])
		assert.False(t, resp.Permissions["restore"])
	})
}

func Test_topicApi_create(t *testing.T) {
	app := setup(t)
	fx := createTopicFixtures(t)

	tests := []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "students cannot create", token: getToken(t, fx.student), wantCode: http.StatusForbidden,
			body: marchallObj(t, topic.NewTopic{Title: "Algebra", Visibility: topic.VisibilityPublic}), wantData: marchallObj(t, errForbidden),
		},
		{
			name: "required fields", token: getToken(t, fx.owner), body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"title": "this field is required", "visibility": "this field is required"}),
		},
		{
			name: "invalid visibility", token: getToken(t, fx.owner), wantCode: http.StatusBadRequest,
			body:     marchallObj(t, topic.NewTopic{Title: "Algebra", Visibility: "lol"}),
			wantData: marchallObj(t, map[string]string{"visibility": "visibility must be one of public, organization or private"}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/topics"
	}
	runTests(t, app, tests)

	t.Run("created as draft", func(t *testing.T) {
		body := marchallObj(t, topic.NewTopic{Title: "  Algebra ", Description: "Basics", Visibility: "Organization"})
		resp := do(t, app, http.MethodPost, "/v1/topics", fx.owner, body, http.StatusCreated)

		assert.NotEmpty(t, resp.ID)
		assert.Equal(t, "Algebra", resp.Title)
		assert.Equal(t, topic.StatusDraft, resp.Status)
		assert.Equal(t, topic.VisibilityOrganization, resp.Visibility)
		assert.Equal(t, fx.owner.ID, resp.CreatedBy)
		assert.Equal(t, "org-1", resp.OrganizationID)
		assert.Contains(t, resp.Actions, topic.ActionSubmitReview)

		stored, err := topicRepo.GetTopic(context.Background(), resp.ID)
		require.NoError(t, err)
		assert.Equal(t, topic.StatusDraft, stored.Status)
	})
}

func Test_topicApi_update(t *testing.T) {
	app := setup(t)
	fx := createTopicFixtures(t)

	draft := testutil.CreateTopic(t, topicRepo, fx.owner, "Draft", topic.StatusDraft, topic.VisibilityPublic)
	approved := testutil.CreateTopic(t, topicRepo, fx.owner, "Approved", topic.StatusApproved, topic.VisibilityPublic)

	tests := []httpTest{
		{
			name: "hidden from other teachers", path: "/v1/topics/" + draft.ID, token: getToken(t, fx.teacher),
			body: []byte(`{"title": "Mine"}`), wantCode: http.StatusNotFound, wantData: marchallObj(t, errTopicNotFound),
		},
		{
			name: "students cannot edit", path: "/v1/topics/" + approved.ID, token: getToken(t, fx.student),
			body: []byte(`{"title": "Mine"}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "approved topics are frozen to their owner", path: "/v1/topics/" + approved.ID, token: getToken(t, fx.owner),
			body: []byte(`{"title": "Mine"}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "invalid visibility", path: "/v1/topics/" + draft.ID, token: getToken(t, fx.owner),
			body: []byte(`{"visibility": "lol"}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"visibility": "visibility must be one of public, organization or private"}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPut
	}
	runTests(t, app, tests)

	t.Run("owner edits draft", func(t *testing.T) {
		resp := do(t, app, http.MethodPut, "/v1/topics/"+draft.ID, fx.owner, []byte(`{"title": "Geometry", "content": "# Angles"}`), http.StatusOK)
		assert.Equal(t, "Geometry", resp.Title)
		assert.Equal(t, "# Angles", resp.Content)
		assert.Equal(t, topic.VisibilityPublic, resp.Visibility)
	})

	t.Run("admin edits approved", func(t *testing.T) {
		resp := do(t, app, http.MethodPut, "/v1/topics/"+approved.ID, fx.admin, []byte(`{"visibility": "private"}`), http.StatusOK)
		assert.Equal(t, topic.VisibilityPrivate, resp.Visibility)
		assert.Equal(t, topic.StatusApproved, resp.Status)
	})
}

func Test_topicApi_reviewWorkflow(t *testing.T) {
	app := setup(t)
	fx := createTopicFixtures(t)
	emailsvc.ResetSentMessages()

	tp := testutil.CreateTopic(t, topicRepo, fx.owner, "Fractions", topic.StatusDraft, topic.VisibilityOrganization)
	path := func(action string) string { return "/v1/topics/" + tp.ID + "/" + action }

	resp := do(t, app, http.MethodPost, path("submit"), fx.owner, nil, http.StatusOK)
	assert.Equal(t, topic.StatusPendingReview, resp.Status)

	tests := []httpTest{
		{name: "submit twice", path: path("submit"), token: getToken(t, fx.owner), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "owner cannot approve", path: path("approve"), token: getToken(t, fx.owner), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "students cannot see it", path: path("approve"), token: getToken(t, fx.student), wantCode: http.StatusNotFound, wantData: marchallObj(t, errTopicNotFound)},
		{
			name: "other organization", path: path("approve"), token: getToken(t, fx.otherAdmin),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errTopicNotFound),
		},
		{
			name: "reject requires comments", path: path("reject"), token: getToken(t, fx.reviewer),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"comments": "this field is required"}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
	}
	runTests(t, app, tests)

	resp = do(t, app, http.MethodPost, path("request-changes"), fx.reviewer, []byte(`{"comments": "Add examples"}`), http.StatusOK)
	assert.Equal(t, topic.StatusChangesRequested, resp.Status)
	assert.Equal(t, "Add examples", resp.ReviewComments)
	assert.Equal(t, fx.reviewer.ID, resp.ReviewedBy)
	assert.Len(t, emailsvc.SentMessages(), 1)

	runTests(t, app, []httpTest{{
		name: "approve once reviewed", method: http.MethodPost, path: path("approve"), token: getToken(t, fx.reviewer),
		wantCode: http.StatusConflict, wantData: marchallObj(t, errInvalidState),
	}})

	// a fresh submission gets approved
	other := testutil.CreateTopic(t, topicRepo, fx.owner, "Decimals", topic.StatusPendingReview, topic.VisibilityPublic)
	resp = do(t, app, http.MethodPost, "/v1/topics/"+other.ID+"/approve", fx.reviewer, nil, http.StatusOK)
	assert.Equal(t, topic.StatusApproved, resp.Status)
	assert.Empty(t, resp.ReviewComments)
	assert.False(t, resp.ReviewedAt.IsZero())
	assert.Len(t, emailsvc.SentMessages(), 2)

	rejected := testutil.CreateTopic(t, topicRepo, fx.owner, "Percents", topic.StatusPendingReview, topic.VisibilityPublic)
	resp = do(t, app, http.MethodPost, "/v1/topics/"+rejected.ID+"/reject", fx.admin, []byte(`{"comments": "Off topic"}`), http.StatusOK)
	assert.Equal(t, topic.StatusRejected, resp.Status)

	// rejected topics go back to review
	resp = do(t, app, http.MethodPost, "/v1/topics/"+rejected.ID+"/submit", fx.owner, nil, http.StatusOK)
	assert.Equal(t, topic.StatusPendingReview, resp.Status)
	assert.Empty(t, resp.ReviewComments)
}

func Test_topicApi_archiveRestore(t *testing.T) {
	app := setup(t)
	fx := createTopicFixtures(t)

	tp := testutil.CreateTopic(t, topicRepo, fx.owner, "Fractions", topic.StatusApproved, topic.VisibilityPublic)
	path := func(action string) string { return "/v1/topics/" + tp.ID + "/" + action }

	runTests(t, app, []httpTest{
		{name: "owner cannot archive", method: http.MethodPost, path: path("archive"), token: getToken(t, fx.owner), wantCode: http.StatusForbidden},
		{name: "other admin cannot archive", method: http.MethodPost, path: path("archive"), token: getToken(t, fx.otherAdmin), wantCode: http.StatusForbidden},
		{name: "nothing to restore", method: http.MethodPost, path: path("restore"), token: getToken(t, fx.admin), wantCode: http.StatusConflict},
	})

	resp := do(t, app, http.MethodPost, path("archive"), fx.admin, nil, http.StatusOK)
	assert.Equal(t, topic.StatusArchived, resp.Status)
	assert.False(t, resp.ArchivedAt.IsZero())
	assert.True(t, resp.Permissions["restore"])

	runTests(t, app, []httpTest{
		{
			name: "archive twice", method: http.MethodPost, path: path("archive"), token: getToken(t, fx.admin),
			wantCode: http.StatusConflict, wantData: marchallObj(t, errInvalidState),
		},
		{name: "owner cannot restore", method: http.MethodPost, path: path("restore"), token: getToken(t, fx.owner), wantCode: http.StatusForbidden},
	})

	resp = do(t, app, http.MethodPost, path("restore"), fx.admin, nil, http.StatusOK)
	assert.Equal(t, topic.StatusDraft, resp.Status)
	assert.True(t, resp.ArchivedAt.IsZero())
}

func Test_topicApi_editRequest(t *testing.T) {
	app := setup(t)
	fx := createTopicFixtures(t)

	tp := testutil.CreateTopic(t, topicRepo, fx.owner, "Fractions", topic.StatusApproved, topic.VisibilityOrganization)
	path := func(action string) string { return "/v1/topics/" + tp.ID + "/" + action }

	runTests(t, app, []httpTest{
		{name: "students cannot ask", method: http.MethodPost, path: path("edit-request"), token: getToken(t, fx.student), wantCode: http.StatusForbidden},
		{name: "nothing to approve", method: http.MethodPost, path: path("edit-request/approve"), token: getToken(t, fx.admin), wantCode: http.StatusForbidden},
	})

	resp := do(t, app, http.MethodPost, path("edit-request"), fx.owner, []byte(`{"reason": " Typos "}`), http.StatusOK)
	assert.True(t, resp.EditRequestPending)
	assert.Equal(t, "Typos", resp.EditRequestReason)
	assert.Equal(t, topic.StatusApproved, resp.Status)

	runTests(t, app, []httpTest{
		{name: "ask twice", method: http.MethodPost, path: path("edit-request"), token: getToken(t, fx.owner), wantCode: http.StatusForbidden},
		{name: "owner cannot resolve", method: http.MethodPost, path: path("edit-request/approve"), token: getToken(t, fx.owner), wantCode: http.StatusForbidden},
	})

	resp = do(t, app, http.MethodPost, path("edit-request/approve"), fx.admin, nil, http.StatusOK)
	assert.Equal(t, topic.StatusEditing, resp.Status)
	assert.False(t, resp.EditRequestPending)
	assert.Empty(t, resp.EditRequestReason)
	assert.Equal(t, topic.StatusBadgeFor(topic.StatusEditing), resp.StatusBadge)

	// a rejected request leaves the topic approved
	other := testutil.CreateTopic(t, topicRepo, fx.owner, "Decimals", topic.StatusApproved, topic.VisibilityOrganization)
	do(t, app, http.MethodPost, "/v1/topics/"+other.ID+"/edit-request", fx.owner, nil, http.StatusOK)
	resp = do(t, app, http.MethodPost, "/v1/topics/"+other.ID+"/edit-request/reject", fx.admin, nil, http.StatusOK)
	assert.Equal(t, topic.StatusApproved, resp.Status)
	assert.False(t, resp.EditRequestPending)
}

func Test_topicApi_collaborators(t *testing.T) {
	app := setup(t)
	fx := createTopicFixtures(t)

	tp := testutil.CreateTopic(t, topicRepo, fx.owner, "Fractions", topic.StatusApproved, topic.VisibilityOrganization)
	path := "/v1/topics/" + tp.ID + "/collaborators"

	runTests(t, app, []httpTest{
		{
			name: "students cannot manage", method: http.MethodPut, path: path, token: getToken(t, fx.student),
			body: marchallObj(t, topic.Collaborators{UserIDs: []string{fx.teacher.ID}}), wantCode: http.StatusForbidden,
		},
		{
			name: "unknown user", method: http.MethodPut, path: path, token: getToken(t, fx.owner),
			body: marchallObj(t, topic.Collaborators{UserIDs: []string{fx.teacher.ID, "lol"}}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"user_ids": `unknown user "lol"`}),
		},
	})

	resp := do(t, app, http.MethodPut, path, fx.owner, marchallObj(t, topic.Collaborators{UserIDs: []string{fx.teacher.ID, fx.owner.ID}}), http.StatusOK)
	assert.Equal(t, []string{fx.teacher.ID}, resp.EditPermissions)

	// collaborators may ask to re-open the topic
	resp = do(t, app, http.MethodGet, "/v1/topics/"+tp.ID, fx.teacher, nil, http.StatusOK)
	assert.True(t, resp.Permissions["request_edit"])

	resp = do(t, app, http.MethodPut, path, fx.admin, marchallObj(t, topic.Collaborators{}), http.StatusOK)
	assert.Empty(t, resp.EditPermissions)
}

func Test_topicApi_delete(t *testing.T) {
	app := setup(t)
	fx := createTopicFixtures(t)

	draft := testutil.CreateTopic(t, topicRepo, fx.owner, "Draft", topic.StatusDraft, topic.VisibilityPublic)
	approved := testutil.CreateTopic(t, topicRepo, fx.owner, "Approved", topic.StatusApproved, topic.VisibilityPublic)

	runTests(t, app, []httpTest{
		{name: "auth required", method: http.MethodDelete, path: "/v1/topics/" + draft.ID, wantCode: http.StatusUnauthorized},
		{name: "other teacher", method: http.MethodDelete, path: "/v1/topics/" + approved.ID, token: getToken(t, fx.teacher), wantCode: http.StatusForbidden},
		{name: "owner cannot delete approved", method: http.MethodDelete, path: "/v1/topics/" + approved.ID, token: getToken(t, fx.owner), wantCode: http.StatusForbidden},
		{name: "owner deletes draft", method: http.MethodDelete, path: "/v1/topics/" + draft.ID, token: getToken(t, fx.owner), wantCode: http.StatusNoContent},
		{name: "gone", method: http.MethodGet, path: "/v1/topics/" + draft.ID, token: getToken(t, fx.owner), wantCode: http.StatusNotFound},
		{name: "admin deletes approved", method: http.MethodDelete, path: "/v1/topics/" + approved.ID, token: getToken(t, fx.admin), wantCode: http.StatusNoContent},
	})
}
