package inmemdb

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/soptable/portal/core/settings"
	"github.com/soptable/portal/core/user"
	"github.com/soptable/portal/storage/database/repotest"
)

func TestUserRepository(t *testing.T) {
	suite.Run(t, &repotest.UserRepositorySuite{
		NewRepo: func() user.Repository { return NewUserRepository(Open()) },
	})
}

func TestSettingsRepository(t *testing.T) {
	suite.Run(t, &repotest.SettingsRepositorySuite{
		NewRepo: func() settings.Repository { return NewSettingsRepository(Open()) },
	})
}
