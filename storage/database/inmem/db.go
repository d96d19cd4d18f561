package inmemdb

import (
	"sync"

	"github.com/trezcool/temario/core/topic"
	"github.com/trezcool/temario/core/user"
)

type (
	userTable struct {
		table map[string]*user.User
		order []string // insertion order
		mutex sync.RWMutex
	}

	topicTable struct {
		table   map[string]*topic.Topic
		order   []string // insertion order
		editors map[string][]string
		mutex   sync.RWMutex
	}

	// DB is a mutex-guarded, process-local store. Handy for tests & demos.
	DB struct {
		user  *userTable
		topic *topicTable
	}
)

func NewDB() *DB {
	return &DB{
		user:  &userTable{table: make(map[string]*user.User)},
		topic: &topicTable{table: make(map[string]*topic.Topic), editors: make(map[string][]string)},
	}
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}
