package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/temario/core"
	"github.com/trezcool/temario/core/topic"
	"github.com/trezcool/temario/core/user"
	"github.com/trezcool/temario/storage/database"
)

// PrepareDB opens a migrated in-memory sqlite database, closed when the test ends.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Open(core.NewTestConfig())
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	role user.Role,
	orgID string,
	isSuper bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:           name,
		Username:       uname,
		Email:          email,
		Role:           role,
		OrganizationID: orgID,
		IsSuper:        isSuper,
		IsActive:       true,
		CreatedAt:      tstamp,
		UpdatedAt:      tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateTopic stores a topic owned by owner, in owner's organization.
func CreateTopic(
	t *testing.T,
	repo topic.Repository,
	owner user.User,
	title string,
	status topic.Status,
	visibility topic.Visibility,
	editors ...string,
) topic.Topic {
	t.Helper()
	now := time.Now().UTC()
	tp := topic.Topic{
		Title:           title,
		Status:          status,
		Visibility:      visibility,
		CreatedBy:       owner.ID,
		OrganizationID:  owner.OrganizationID,
		EditPermissions: editors,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if status == topic.StatusArchived {
		tp.ArchivedAt = now
	}
	tp, err := repo.CreateTopic(context.Background(), tp)
	if err != nil {
		t.Fatalf("CreateTopic() failed: %v", err)
	}
	return tp
}
