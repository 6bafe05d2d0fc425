// Package inmemdb keeps users and settings in process memory. It backs tests and demo runs.
package inmemdb

import (
	"sync"

	"github.com/soptable/portal/core/settings"
	"github.com/soptable/portal/core/user"
)

type (
	DB struct {
		user     *userTable
		settings *settingsTable
	}

	userTable struct {
		sync.RWMutex
		pk    int
		table map[int]*user.User
	}

	settingsTable struct {
		sync.RWMutex
		values map[string]string
		log    []settings.LogEntry
	}
)

func Open() *DB {
	return &DB{
		user:     &userTable{table: make(map[int]*user.User)},
		settings: &settingsTable{values: make(map[string]string)},
	}
}
