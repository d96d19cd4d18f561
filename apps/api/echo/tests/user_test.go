package tests

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/temario/apps/api/echo"
	"github.com/trezcool/temario/core/topic"
	"github.com/trezcool/temario/core/user"
	testutil "github.com/trezcool/temario/tests"
)

const strongPwd = "Gr@ssHopper-42"

func Test_userApi_login(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", strongPwd, user.RoleTeacher, "org-1", false)
	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndog", "ndog@test.cd", strongPwd, user.RoleStudent, "org-1", false)
	naughty.IsActive = false
	_, err := usrRepo.UpdateUser(context.Background(), naughty)
	require.NoError(t, err)

	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{
			name: "unknown user", body: marchallObj(t, echoapi.LoginRequest{Username: "lol", Password: strongPwd}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", body: marchallObj(t, echoapi.LoginRequest{Username: "teacher", Password: "lol"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "inactive user", body: marchallObj(t, echoapi.LoginRequest{Username: "ndog", Password: strongPwd}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/users/login"
	}
	runTests(t, app, tests)

	for _, uname := range []string{"teacher", "TEACHER@test.cd"} {
		t.Run("logged in as "+uname, func(t *testing.T) {
			body := marchallObj(t, echoapi.LoginRequest{Username: uname, Password: strongPwd})
			req, rec := newRequest(http.MethodPost, "/v1/users/login", body)
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp echoapi.LoginResponse
			decode(t, rec, &resp)
			assert.NotEmpty(t, resp.Token)

			// the token authenticates the user
			req, rec = newAuthRequest(http.MethodGet, "/v1/users/me", resp.Token)
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)
			var me user.User
			decode(t, rec, &me)
			assert.Equal(t, teacher.ID, me.ID)
			assert.False(t, me.LastLogin.IsZero())
		})
	}
}

func Test_userApi_refreshToken(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", user.RoleStudent, "org-1", false)
	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndog", "ndog@test.cd", "", user.RoleStudent, "org-1", false)
	naughtyToken := getToken(t, naughty)
	naughty.IsActive = false
	_, err := usrRepo.UpdateUser(context.Background(), naughty)
	require.NoError(t, err)

	now := time.Now()
	unrefreshableClaims := &echoapi.Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   student.ID,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: now.Add(-2 * conf.Server.JWTRefreshExpirationDelta).Unix(), // older than threshold
		Role:         student.Role,
	}
	unrefreshableToken, err := echoapi.GenerateToken(conf, unrefreshableClaims)
	require.NoError(t, err)

	tests := []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "bad token", token: "not.a.token", wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "invalid or expired jwt"}),
		},
		{
			name: "inactive user not allowed", token: naughtyToken, wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "refresh period expired", token: unrefreshableToken, wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "refresh has expired"}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/users/token-refresh"
	}
	runTests(t, app, tests)

	t.Run("token refreshed", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", getToken(t, student))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		// cannot guess new token.. just check that it's not empty
		var resp echoapi.LoginResponse
		decode(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
	})
}

func Test_userApi_register(t *testing.T) {
	app := setup(t)

	super := testutil.CreateUser(t, usrRepo, "Root", "root", "root@test.cd", "", user.RoleAdmin, "", true)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", user.RoleAdmin, "org-1", false)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.RoleTeacher, "org-1", false)

	newUser := func(uname, org string, isSuper bool) user.NewUser {
		return user.NewUser{
			Name:            "Jane Doe",
			Username:        uname,
			Email:           uname + "@test.cd",
			Role:            user.RoleReviewer,
			OrganizationID:  org,
			IsSuper:         isSuper,
			Password:        strongPwd,
			PasswordConfirm: strongPwd,
		}
	}

	tests := []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "admin required", token: getToken(t, teacher), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{
			name: "required fields", token: getToken(t, super), body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"name":             "this field is required",
				"role":             "this field is required",
				"password":         "this field is required",
				"password_confirm": "this field is required",
				"username":         "one of username or email is required",
				"email":            "one of username or email is required",
			}),
		},
		{
			name: "username taken", token: getToken(t, super), body: marchallObj(t, newUser("teacher", "org-1", false)),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"username": user.ErrUsernameExists.Error()}),
		},
		{
			name: "admin cannot create super users", token: getToken(t, admin), body: marchallObj(t, newUser("jane_doe", "", true)),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"is_super": "not enough rights to create super users"}),
		},
		{
			name: "admin stays in own organization", token: getToken(t, admin), body: marchallObj(t, newUser("jane_doe", "org-2", false)),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"organization_id": "cannot register users in another organization"}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/users/register"
	}
	runTests(t, app, tests)

	created := []struct {
		name    string
		token   string
		data    user.NewUser
		wantOrg string
	}{
		{name: "admin defaults to own organization", token: getToken(t, admin), data: newUser("jane_doe", "", false), wantOrg: "org-1"},
		{name: "super picks any organization", token: getToken(t, super), data: newUser("john_doe", "org-2", false), wantOrg: "org-2"},
	}
	for _, tt := range created {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/users/register", tt.token, marchallObj(t, tt.data))
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

			var usr user.User
			decode(t, rec, &usr)
			assert.NotEmpty(t, usr.ID)
			assert.Equal(t, tt.data.Username, usr.Username)
			assert.Equal(t, user.RoleReviewer, usr.Role)
			assert.Equal(t, tt.wantOrg, usr.OrganizationID)
			assert.True(t, usr.IsActive)
		})
	}
}

func Test_userApi_query(t *testing.T) {
	app := setup(t)

	super := testutil.CreateUser(t, usrRepo, "Root", "root", "root@test.cd", "", user.RoleAdmin, "", true)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", user.RoleAdmin, "org-1", false)
	testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.RoleTeacher, "org-1", false)
	testutil.CreateUser(t, usrRepo, "Student", "student", "student@test.cd", "", user.RoleStudent, "org-1", false)
	testutil.CreateUser(t, usrRepo, "Other", "other", "other@test.cd", "", user.RoleTeacher, "org-2", false)
	floater := testutil.CreateUser(t, usrRepo, "Floater", "floater", "floater@test.cd", "", user.RoleAdmin, "", false)
	testutil.CreateUser(t, usrRepo, "Loner", "loner", "loner@test.cd", "", user.RoleStudent, "", false)

	path := func(search, ordering string, roles ...user.Role) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		for _, r := range roles {
			v.Add("role", string(r))
		}
		return "/v1/users?" + v.Encode()
	}

	tests := []struct {
		name      string
		path      string
		usr       user.User
		wantCode  int
		wantUsers []string
	}{
		{name: "admin required", path: "/v1/users", usr: user.User{}, wantCode: http.StatusUnauthorized},
		{name: "super sees everyone", path: path("", "username"), usr: super, wantUsers: []string{"admin", "floater", "loner", "other", "root", "student", "teacher"}},
		{name: "admin sees own organization", path: path("", "username"), usr: admin, wantUsers: []string{"admin", "student", "teacher"}},
		{name: "admin cannot widen to another organization", path: path("", "username") + "&organization_id=org-2", usr: admin, wantUsers: []string{"admin", "student", "teacher"}},
		{name: "admin without organization sees org-less users only", path: path("", "username"), usr: floater, wantUsers: []string{"floater", "loner", "root"}},
		{name: "admin without organization cannot pick one", path: path("", "username") + "&organization_id=org-1", usr: floater, wantUsers: []string{"floater", "loner", "root"}},
		{name: "ordering desc", path: path("", "-username"), usr: admin, wantUsers: []string{"teacher", "student", "admin"}},
		{name: "role filter", path: path("", "username", user.RoleTeacher), usr: super, wantUsers: []string{"other", "teacher"}},
		{name: "search", path: path("STUD", ""), usr: admin, wantUsers: []string{"student"}},
		{name: "search (unknown)", path: path("lol", ""), usr: admin, wantUsers: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var token string
			if tt.usr.ID != "" {
				token = getToken(t, tt.usr)
			}
			req, rec := newAuthRequest(http.MethodGet, tt.path, token)
			app.ServeHTTP(rec, req)

			wantCode := tt.wantCode
			if wantCode == 0 {
				wantCode = http.StatusOK
			}
			require.Equal(t, wantCode, rec.Code, rec.Body.String())
			if wantCode != http.StatusOK {
				return
			}

			var users []user.User
			decode(t, rec, &users)
			unames := make([]string, 0, len(users))
			for _, usr := range users {
				unames = append(unames, usr.Username)
			}
			assert.Equal(t, tt.wantUsers, unames)
		})
	}
}

func Test_userApi_rolesAndHelp(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, usrRepo, "Student", "student", "student@test.cd", "", user.RoleStudent, "org-1", false)
	studentToken := getToken(t, student)

	tests := []httpTest{
		{name: "roles: auth required", path: "/v1/users/roles", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "roles", path: "/v1/users/roles", token: studentToken, wantData: marchallObj(t, user.Roles)},
		{
			name: "help: anonymous", path: "/v1/help",
			wantData: marchallObj(t, echoapi.HelpResponse{Message: topic.HelpMessage(nil)}),
		},
		{
			name: "help: student", path: "/v1/help", token: studentToken,
			wantData: marchallObj(t, echoapi.HelpResponse{Message: topic.HelpMessage(&student)}),
		},
		{
			name: "help: bad token", path: "/v1/help", token: "lol", wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "invalid or expired jwt"}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodGet
	}
	runTests(t, app, tests)
}
