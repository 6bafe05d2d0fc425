// Package repotest holds the behaviour every repository implementation must share.
package repotest

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/soptable/portal/core"
	"github.com/soptable/portal/core/settings"
	"github.com/soptable/portal/core/user"
	"github.com/soptable/portal/testutil"
)

type UserRepositorySuite struct {
	suite.Suite
	NewRepo func() user.Repository

	repo user.Repository
	ctx  context.Context
}

func (s *UserRepositorySuite) SetupTest() {
	testutil.FastPasswords()
	s.repo = s.NewRepo()
	s.ctx = context.Background()
}

func (s *UserRepositorySuite) create(name, email, role string, createdAt ...time.Time) user.User {
	return testutil.CreateUser(s.T(), s.repo, name, email, "pass", role, createdAt...)
}

func (s *UserRepositorySuite) TestCreateAndGet() {
	usr := s.create("Kim", "kim@x.io", user.RoleStudent)
	s.NotZero(usr.ID)

	got, err := s.repo.GetUser(s.ctx, user.GetFilter{ID: usr.ID})
	s.Require().NoError(err)
	s.Equal("kim@x.io", got.Email)
	s.NoError(got.CheckPassword("pass"))

	got, err = s.repo.GetUser(s.ctx, user.GetFilter{Email: "kim@x.io"})
	s.Require().NoError(err)
	s.Equal(usr.ID, got.ID)

	_, err = s.repo.GetUser(s.ctx, user.GetFilter{Email: "nobody@x.io"})
	s.ErrorIs(err, user.ErrNotFound)
	_, err = s.repo.GetUser(s.ctx, user.GetFilter{ID: 9999})
	s.ErrorIs(err, user.ErrNotFound)
}

func (s *UserRepositorySuite) TestCreateDuplicateEmail() {
	s.create("Kim", "kim@x.io", user.RoleStudent)

	_, err := s.repo.CreateUser(s.ctx, user.User{Name: "Other", Email: "kim@x.io", Role: user.RoleStudent, PasswordHash: []byte("x")})
	s.ErrorIs(err, user.ErrEmailExists)
}

func (s *UserRepositorySuite) TestCheckEmailUniqueness() {
	usr := s.create("Kim", "kim@x.io", user.RoleStudent)

	s.ErrorIs(s.repo.CheckEmailUniqueness(s.ctx, "kim@x.io"), user.ErrEmailExists)
	s.NoError(s.repo.CheckEmailUniqueness(s.ctx, "kim@x.io", usr.ID))
	s.NoError(s.repo.CheckEmailUniqueness(s.ctx, "lee@x.io"))
}

func (s *UserRepositorySuite) TestQueryUsers() {
	now := time.Now().UTC().Truncate(time.Second)
	kim := s.create("Kim Minji", "kim@x.io", user.RoleStudent, now.Add(-2*time.Hour))
	lee := s.create("Lee Jun", "lee@x.io", user.RoleProfessor, now.Add(-time.Hour))
	park := s.create("Park", "park@x.io", user.RoleAdmin, now)

	ids := func(users []user.User) []int {
		res := make([]int, 0, len(users))
		for _, u := range users {
			res = append(res, u.ID)
		}
		return res
	}

	tests := []struct {
		name     string
		filter   *user.QueryFilter
		ordering []core.DBOrdering
		want     []int
	}{
		{name: "no filter, newest first", want: []int{park.ID, lee.ID, kim.ID}},
		{name: "ascending", ordering: []core.DBOrdering{{Field: "created_at", Ascending: true}}, want: []int{kim.ID, lee.ID, park.ID}},
		{name: "search name", filter: &user.QueryFilter{Search: "minji"}, want: []int{kim.ID}},
		{name: "search email", filter: &user.QueryFilter{Search: "LEE@"}, want: []int{lee.ID}},
		{name: "roles", filter: &user.QueryFilter{Roles: []string{user.RoleStudent, user.RoleAdmin}}, want: []int{park.ID, kim.ID}},
		{name: "created from", filter: &user.QueryFilter{CreatedFrom: now.Add(-90 * time.Minute)}, want: []int{park.ID, lee.ID}},
		{name: "created to", filter: &user.QueryFilter{CreatedTo: now.Add(-90 * time.Minute)}, want: []int{kim.ID}},
		{name: "no match", filter: &user.QueryFilter{Search: "zzz"}, want: []int{}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			users, err := s.repo.QueryUsers(s.ctx, tt.filter, tt.ordering)
			s.Require().NoError(err)
			s.Equal(tt.want, ids(users))
		})
	}
}

func (s *UserRepositorySuite) TestUpdateUser() {
	kim := s.create("Kim", "kim@x.io", user.RoleStudent)
	lee := s.create("Lee", "lee@x.io", user.RoleStudent)

	kim.Name = "Kim Minji"
	kim.Grade = "2"
	kim.PasswordHash = nil
	got, err := s.repo.UpdateUser(s.ctx, kim)
	s.Require().NoError(err)
	s.Equal("Kim Minji", got.Name)
	s.Equal("2", got.Grade)
	s.NoError(got.CheckPassword("pass"), "password kept when no hash is given")

	lee.Email = "kim@x.io"
	_, err = s.repo.UpdateUser(s.ctx, lee)
	s.ErrorIs(err, user.ErrEmailExists)

	_, err = s.repo.UpdateUser(s.ctx, user.User{ID: 9999, Email: "ghost@x.io"})
	s.ErrorIs(err, user.ErrNotFound)
}

func (s *UserRepositorySuite) TestUpdateUserFields() {
	kim := s.create("Kim", "kim@x.io", user.RoleStudent)
	kim.Phone = "010"
	_, err := s.repo.UpdateUser(s.ctx, kim)
	s.Require().NoError(err)

	err = s.repo.UpdateUserFields(s.ctx, kim.ID, map[string]string{"name": "Kim Minji", "grade": "3"})
	s.Require().NoError(err)

	got, err := s.repo.GetUser(s.ctx, user.GetFilter{ID: kim.ID})
	s.Require().NoError(err)
	s.Equal("Kim Minji", got.Name)
	s.Equal("3", got.Grade)
	s.Equal("010", got.Phone, "untouched fields are kept")
	s.Equal("kim@x.io", got.Email)

	s.ErrorIs(s.repo.UpdateUserFields(s.ctx, kim.ID, map[string]string{"password": "x"}), user.ErrUnknownField)
	s.ErrorIs(s.repo.UpdateUserFields(s.ctx, 9999, map[string]string{"name": "x"}), user.ErrNotFound)
}

func (s *UserRepositorySuite) TestDeleteUsersByID() {
	kim := s.create("Kim", "kim@x.io", user.RoleStudent)
	lee := s.create("Lee", "lee@x.io", user.RoleStudent)
	s.create("Park", "park@x.io", user.RoleStudent)

	n, err := s.repo.DeleteUsersByID(s.ctx, kim.ID, lee.ID, 9999)
	s.Require().NoError(err)
	s.Equal(2, n)

	users, err := s.repo.QueryUsers(s.ctx, nil, nil)
	s.Require().NoError(err)
	s.Len(users, 1)
}

func (s *UserRepositorySuite) TestReplaceAllUsers() {
	s.create("Kim", "kim@x.io", user.RoleStudent)

	now := time.Now().UTC()
	restored := []user.User{
		{ID: 10, Name: "Lee", Email: "lee@x.io", Role: user.RoleProfessor, PasswordHash: []byte("h"), CreatedAt: now, UpdatedAt: now},
		{Name: "Park", Email: "park@x.io", Role: user.RoleStudent, PasswordHash: []byte("h"), CreatedAt: now, UpdatedAt: now},
	}
	s.Require().NoError(s.repo.ReplaceAllUsers(s.ctx, restored))

	users, err := s.repo.QueryUsers(s.ctx, nil, []core.DBOrdering{{Field: "id", Ascending: true}})
	s.Require().NoError(err)
	s.Require().Len(users, 2)
	s.Equal(10, users[0].ID)
	s.Equal(11, users[1].ID)

	// next insert continues after the restored ids
	usr := s.create("Choi", "choi@x.io", user.RoleStudent)
	s.Greater(usr.ID, 11)

	s.Run("all or nothing", func() {
		err := s.repo.ReplaceAllUsers(s.ctx, []user.User{
			{Name: "A", Email: "dup@x.io", Role: user.RoleStudent, PasswordHash: []byte("h"), CreatedAt: now, UpdatedAt: now},
			{Name: "B", Email: "dup@x.io", Role: user.RoleStudent, PasswordHash: []byte("h"), CreatedAt: now, UpdatedAt: now},
		})
		s.Error(err)

		users, err := s.repo.QueryUsers(s.ctx, nil, nil)
		s.Require().NoError(err)
		s.Len(users, 3, "previous users are kept")
	})
}

type SettingsRepositorySuite struct {
	suite.Suite
	NewRepo func() settings.Repository

	repo settings.Repository
	ctx  context.Context
}

func (s *SettingsRepositorySuite) SetupTest() {
	s.repo = s.NewRepo()
	s.ctx = context.Background()
}

func (s *SettingsRepositorySuite) TestGetPut() {
	_, err := s.repo.GetSetting(s.ctx, "title:survey")
	s.ErrorIs(err, settings.ErrNotFound)

	s.Require().NoError(s.repo.PutSetting(s.ctx, "title:survey", "설문"))
	s.Require().NoError(s.repo.PutSetting(s.ctx, "title:survey", "수업 설문"))

	v, err := s.repo.GetSetting(s.ctx, "title:survey")
	s.Require().NoError(err)
	s.Equal("수업 설문", v)
}

func (s *SettingsRepositorySuite) TestRoleMenuLog() {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		entry := settings.LogEntry{
			Time:    base.Add(time.Duration(i) * time.Minute),
			Changes: []settings.Change{{Role: "student", Menu: "survey", Key: "read", Before: i%2 == 0, After: i%2 != 0}},
		}
		s.Require().NoError(s.repo.AppendRoleMenuLog(s.ctx, entry))
	}

	entries, err := s.repo.QueryRoleMenuLog(s.ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.True(entries[0].Time.Equal(base.Add(2*time.Minute)), "latest first")
	s.Equal("survey", entries[0].Changes[0].Menu)
	s.True(entries[1].Time.Equal(base.Add(time.Minute)))
}
