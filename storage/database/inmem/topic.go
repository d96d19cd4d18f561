package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/temario/core"
	"github.com/trezcool/temario/core/topic"
)

type topicRepository struct {
	db *topicTable
}

var _ topic.Repository = (*topicRepository)(nil) // interface compliance check

func NewTopicRepository(db *DB) *topicRepository {
	return &topicRepository{db: db.topic}
}

// get returns a copy of the stored topic with its editors. Caller holds the lock.
func (repo *topicRepository) get(id string) (topic.Topic, bool) {
	stored, ok := repo.db.table[id]
	if !ok {
		return topic.Topic{}, false
	}
	t := *stored
	t.EditPermissions = append([]string{}, repo.db.editors[id]...)
	return t, true
}

func (repo *topicRepository) CreateTopic(_ context.Context, t topic.Topic) (topic.Topic, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	t.ID = uuid.New().String()
	t.Version = 1
	editors := append([]string{}, t.EditPermissions...)
	t.EditPermissions = nil
	repo.db.table[t.ID] = &t
	repo.db.editors[t.ID] = editors
	repo.db.order = append(repo.db.order, t.ID)

	created, _ := repo.get(t.ID)
	return created, nil
}

func (repo *topicRepository) GetTopic(_ context.Context, id string) (topic.Topic, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.get(id); ok {
		return t, nil
	}
	return topic.Topic{}, topic.ErrNotFound
}

func (repo *topicRepository) QueryTopics(_ context.Context, filter *topic.QueryFilter, ordering []core.DBOrdering) ([]topic.Topic, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	topics := make([]topic.Topic, 0, len(repo.db.order))
	for _, id := range repo.db.order {
		t, _ := repo.get(id)
		if filter != nil && !matchTopic(t, filter) {
			continue
		}
		topics = append(topics, t)
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(topics, func(i, j int) bool {
		a, b := topics[i], topics[j]
		for _, ord := range ordering {
			var less, greater bool
			switch ord.Field {
			case "title":
				less, greater = a.Title < b.Title, a.Title > b.Title
			case "status":
				less, greater = a.Status < b.Status, a.Status > b.Status
			case "created_at":
				less, greater = a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.After(b.CreatedAt)
			case "updated_at":
				less, greater = a.UpdatedAt.Before(b.UpdatedAt), a.UpdatedAt.After(b.UpdatedAt)
			default:
				continue
			}
			if less || greater {
				return less == ord.Ascending
			}
		}
		return false
	})
	return topics, nil
}

func matchTopic(t topic.Topic, filter *topic.QueryFilter) bool {
	if filter.Search != "" {
		s := strings.ToLower(filter.Search)
		if !(strings.Contains(strings.ToLower(t.Title), s) || strings.Contains(strings.ToLower(t.Description), s)) {
			return false
		}
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, st := range filter.Statuses {
			if t.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.Visibility != "" && t.Visibility != filter.Visibility {
		return false
	}
	if filter.OrganizationID != "" && t.OrganizationID != filter.OrganizationID {
		return false
	}
	if filter.CreatedBy != "" && t.CreatedBy != filter.CreatedBy {
		return false
	}
	if !filter.ArchivedBefore.IsZero() && (t.ArchivedAt.IsZero() || !t.ArchivedAt.Before(filter.ArchivedBefore)) {
		return false
	}
	return true
}

func (repo *topicRepository) UpdateTopic(_ context.Context, t topic.Topic) (topic.Topic, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored, ok := repo.db.table[t.ID]
	if !ok {
		return topic.Topic{}, topic.ErrNotFound
	}
	if stored.Version != t.Version {
		return topic.Topic{}, topic.ErrStaleTopic
	}
	t.Version++
	t.CreatedBy = stored.CreatedBy
	t.CreatedAt = stored.CreatedAt
	t.EditPermissions = nil
	repo.db.table[t.ID] = &t

	updated, _ := repo.get(t.ID)
	return updated, nil
}

func (repo *topicRepository) SetEditors(_ context.Context, topicID string, userIDs []string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[topicID]; !ok {
		return topic.ErrNotFound
	}
	repo.db.editors[topicID] = append([]string{}, userIDs...)
	return nil
}

func (repo *topicRepository) DeleteTopics(_ context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		delete(repo.db.table, id)
		delete(repo.db.editors, id)
		repo.db.order = removeID(repo.db.order, id)
	}
	return nil
}
