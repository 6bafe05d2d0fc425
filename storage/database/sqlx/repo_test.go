package sqlxrepos

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/soptable/portal/core/settings"
	"github.com/soptable/portal/core/user"
	"github.com/soptable/portal/storage/database/repotest"
	"github.com/soptable/portal/testutil"
)

func TestUserRepository(t *testing.T) {
	suite.Run(t, &repotest.UserRepositorySuite{
		NewRepo: func() user.Repository { return NewUserRepository(testutil.OpenDB(t)) },
	})
}

func TestSettingsRepository(t *testing.T) {
	suite.Run(t, &repotest.SettingsRepositorySuite{
		NewRepo: func() settings.Repository { return NewSettingsRepository(testutil.OpenDB(t)) },
	})
}
