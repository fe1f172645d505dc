package inmemdb

import (
	"sync"

	"github.com/trezcool/kazi/core/task"
	"github.com/trezcool/kazi/core/user"
)

type (
	DB struct {
		user *userTable
		task *taskTable
	}

	userTable struct {
		sync.RWMutex
		pkCount int
		table   map[int]*user.User
	}

	taskTable struct {
		sync.RWMutex
		pkCount   int
		suPkCount int
		table     map[int]*task.Task
		ledger    map[int][]task.StatusUpdate // taskID -> entries, insertion order
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[int]*user.User)},
		task: &taskTable{
			table:  make(map[int]*task.Task),
			ledger: make(map[int][]task.StatusUpdate),
		},
	}
	return db, nil
}
