package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/temario/core"
	"github.com/trezcool/temario/core/topic"
)

const topicColumns = `id, title, description, content, status, visibility, created_by, organization_id,
	edit_request_pending, edit_request_reason, review_comments, reviewed_by, reviewed_at, archived_at,
	created_at, updated_at, version`

var topicOrderings = map[string]string{
	"title":      "title",
	"status":     "status",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

type topicRow struct {
	ID                 string      `db:"id"`
	Title              string      `db:"title"`
	Description        string      `db:"description"`
	Content            string      `db:"content"`
	Status             string      `db:"status"`
	Visibility         string      `db:"visibility"`
	CreatedBy          string      `db:"created_by"`
	OrganizationID     null.String `db:"organization_id"`
	EditRequestPending bool        `db:"edit_request_pending"`
	EditRequestReason  string      `db:"edit_request_reason"`
	ReviewComments     string      `db:"review_comments"`
	ReviewedBy         null.String `db:"reviewed_by"`
	ReviewedAt         null.Time   `db:"reviewed_at"`
	ArchivedAt         null.Time   `db:"archived_at"`
	CreatedAt          time.Time   `db:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at"`
	Version            int         `db:"version"`
}

func toTopicRow(t topic.Topic) topicRow {
	return topicRow{
		ID:                 t.ID,
		Title:              t.Title,
		Description:        t.Description,
		Content:            t.Content,
		Status:             string(t.Status),
		Visibility:         string(t.Visibility),
		CreatedBy:          t.CreatedBy,
		OrganizationID:     null.NewString(t.OrganizationID, t.OrganizationID != ""),
		EditRequestPending: t.EditRequestPending,
		EditRequestReason:  t.EditRequestReason,
		ReviewComments:     t.ReviewComments,
		ReviewedBy:         null.NewString(t.ReviewedBy, t.ReviewedBy != ""),
		ReviewedAt:         null.NewTime(t.ReviewedAt.UTC(), !t.ReviewedAt.IsZero()),
		ArchivedAt:         null.NewTime(t.ArchivedAt.UTC(), !t.ArchivedAt.IsZero()),
		CreatedAt:          t.CreatedAt.UTC(),
		UpdatedAt:          t.UpdatedAt.UTC(),
		Version:            t.Version,
	}
}

func (row topicRow) topic(editors []string) topic.Topic {
	if editors == nil {
		editors = []string{}
	}
	t := topic.Topic{
		ID:                 row.ID,
		Title:              row.Title,
		Description:        row.Description,
		Content:            row.Content,
		Status:             topic.Status(row.Status),
		Visibility:         topic.Visibility(row.Visibility),
		CreatedBy:          row.CreatedBy,
		OrganizationID:     row.OrganizationID.String,
		EditPermissions:    editors,
		EditRequestPending: row.EditRequestPending,
		EditRequestReason:  row.EditRequestReason,
		ReviewComments:     row.ReviewComments,
		ReviewedBy:         row.ReviewedBy.String,
		CreatedAt:          row.CreatedAt.UTC(),
		UpdatedAt:          row.UpdatedAt.UTC(),
		Version:            row.Version,
	}
	if row.ReviewedAt.Valid {
		t.ReviewedAt = row.ReviewedAt.Time.UTC()
	}
	if row.ArchivedAt.Valid {
		t.ArchivedAt = row.ArchivedAt.Time.UTC()
	}
	return t
}

type topicRepository struct {
	exec core.DBExecutor
}

var _ topic.Repository = (*topicRepository)(nil) // interface compliance check

func NewTopicRepository(exec core.DBExecutor) *topicRepository {
	return &topicRepository{exec: exec}
}

// withTx runs fn in a transaction when the executor can start one, directly otherwise (eg. already in a Tx).
func (repo *topicRepository) withTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	db, ok := repo.exec.(core.DB)
	if !ok {
		return fn(repo.exec)
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// editors returns the collaborators of each of the given topics.
func (repo *topicRepository) editors(ctx context.Context, ids ...string) (map[string][]string, error) {
	editors := make(map[string][]string, len(ids))
	if len(ids) == 0 {
		return editors, nil
	}
	query, args, err := sqlx.In("SELECT topic_id, user_id FROM topic_editors WHERE topic_id IN (?) ORDER BY user_id", ids)
	if err != nil {
		return nil, errors.Wrap(err, "building editors query")
	}
	var rows []struct {
		TopicID string `db:"topic_id"`
		UserID  string `db:"user_id"`
	}
	if err = sqlx.SelectContext(ctx, repo.exec, &rows, repo.exec.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying topic editors")
	}
	for _, row := range rows {
		editors[row.TopicID] = append(editors[row.TopicID], row.UserID)
	}
	return editors, nil
}

func insertEditors(ctx context.Context, exec core.DBExecutor, topicID string, userIDs []string) error {
	query := exec.Rebind("INSERT INTO topic_editors (topic_id, user_id) VALUES (?, ?)")
	for _, uid := range userIDs {
		if _, err := exec.ExecContext(ctx, query, topicID, uid); err != nil {
			return errors.Wrap(err, "inserting topic editor")
		}
	}
	return nil
}

func (repo *topicRepository) CreateTopic(ctx context.Context, t topic.Topic) (topic.Topic, error) {
	t.ID = uuid.New().String()
	t.Version = 1
	row := toTopicRow(t)
	query := `INSERT INTO topics (` + topicColumns + `) VALUES (
		:id, :title, :description, :content, :status, :visibility, :created_by, :organization_id,
		:edit_request_pending, :edit_request_reason, :review_comments, :reviewed_by, :reviewed_at, :archived_at,
		:created_at, :updated_at, :version)`

	err := repo.withTx(ctx, func(exec core.DBExecutor) error {
		if _, err := sqlx.NamedExecContext(ctx, exec, query, row); err != nil {
			return errors.Wrap(err, "inserting topic")
		}
		return insertEditors(ctx, exec, t.ID, t.EditPermissions)
	})
	if err != nil {
		return topic.Topic{}, err
	}
	return row.topic(append([]string{}, t.EditPermissions...)), nil
}

func (repo *topicRepository) GetTopic(ctx context.Context, id string) (topic.Topic, error) {
	if _, err := uuid.Parse(id); err != nil {
		return topic.Topic{}, topic.ErrNotFound
	}
	var row topicRow
	query := repo.exec.Rebind("SELECT " + topicColumns + " FROM topics WHERE id = ?")
	if err := sqlx.GetContext(ctx, repo.exec, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return topic.Topic{}, topic.ErrNotFound
		}
		return topic.Topic{}, errors.Wrap(err, "finding topic")
	}
	editors, err := repo.editors(ctx, row.ID)
	if err != nil {
		return topic.Topic{}, err
	}
	return row.topic(editors[row.ID]), nil
}

func (repo *topicRepository) QueryTopics(ctx context.Context, filter *topic.QueryFilter, ordering []core.DBOrdering) ([]topic.Topic, error) {
	var (
		where []string
		args  []interface{}
	)

	if filter != nil {
		// topics with Title or Description matching the search keyword
		if filter.Search != "" {
			val := "%" + strings.ToLower(filter.Search) + "%"
			where = append(where, "(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)")
			args = append(args, val, val)
		}
		if len(filter.Statuses) > 0 {
			statuses := make([]string, 0, len(filter.Statuses))
			for _, s := range filter.Statuses {
				statuses = append(statuses, string(s))
			}
			where = append(where, "status IN (?)")
			args = append(args, statuses)
		}
		if filter.Visibility != "" {
			where = append(where, "visibility = ?")
			args = append(args, string(filter.Visibility))
		}
		if filter.OrganizationID != "" {
			where = append(where, "organization_id = ?")
			args = append(args, filter.OrganizationID)
		}
		if filter.CreatedBy != "" {
			where = append(where, "created_by = ?")
			args = append(args, filter.CreatedBy)
		}
		if !filter.ArchivedBefore.IsZero() {
			where = append(where, "archived_at IS NOT NULL AND archived_at < ?")
			args = append(args, filter.ArchivedBefore.UTC())
		}
	}

	query := "SELECT " + topicColumns + " FROM topics"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + core.OrderByClause(ordering, topicOrderings, "created_at DESC")

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "building topics query")
	}
	var rows []topicRow
	if err = sqlx.SelectContext(ctx, repo.exec, &rows, repo.exec.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying topics")
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	editors, err := repo.editors(ctx, ids...)
	if err != nil {
		return nil, err
	}

	topics := make([]topic.Topic, 0, len(rows))
	for _, row := range rows {
		topics = append(topics, row.topic(editors[row.ID]))
	}
	return topics, nil
}

func (repo *topicRepository) UpdateTopic(ctx context.Context, t topic.Topic) (topic.Topic, error) {
	row := toTopicRow(t)
	query := `UPDATE topics SET
		title = :title, description = :description, content = :content, status = :status,
		visibility = :visibility, organization_id = :organization_id,
		edit_request_pending = :edit_request_pending, edit_request_reason = :edit_request_reason,
		review_comments = :review_comments, reviewed_by = :reviewed_by, reviewed_at = :reviewed_at,
		archived_at = :archived_at, updated_at = :updated_at, version = version + 1
		WHERE id = :id AND version = :version`

	res, err := sqlx.NamedExecContext(ctx, repo.exec, query, row)
	if err != nil {
		return topic.Topic{}, errors.Wrap(err, "updating topic")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return topic.Topic{}, errors.Wrap(err, "updating topic")
	}
	if n == 0 {
		// either gone or moved on since it was read
		if _, err = repo.GetTopic(ctx, t.ID); err != nil {
			return topic.Topic{}, err
		}
		return topic.Topic{}, topic.ErrStaleTopic
	}
	return repo.GetTopic(ctx, t.ID)
}

func (repo *topicRepository) SetEditors(ctx context.Context, topicID string, userIDs []string) error {
	return repo.withTx(ctx, func(exec core.DBExecutor) error {
		var found bool
		err := sqlx.GetContext(ctx, exec, &found, exec.Rebind("SELECT true FROM topics WHERE id = ?"), topicID)
		if errors.Is(err, sql.ErrNoRows) {
			return topic.ErrNotFound
		}
		if err != nil {
			return errors.Wrap(err, "finding topic")
		}
		if _, err = exec.ExecContext(ctx, exec.Rebind("DELETE FROM topic_editors WHERE topic_id = ?"), topicID); err != nil {
			return errors.Wrap(err, "clearing topic editors")
		}
		return insertEditors(ctx, exec, topicID, userIDs)
	})
}

func (repo *topicRepository) DeleteTopics(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return repo.withTx(ctx, func(exec core.DBExecutor) error {
		for _, stmt := range []string{
			"DELETE FROM topic_editors WHERE topic_id IN (?)",
			"DELETE FROM topics WHERE id IN (?)",
		} {
			query, args, err := sqlx.In(stmt, ids)
			if err != nil {
				return errors.Wrap(err, "building delete query")
			}
			if _, err = exec.ExecContext(ctx, exec.Rebind(query), args...); err != nil {
				return errors.Wrap(err, "deleting topics")
			}
		}
		return nil
	})
}
