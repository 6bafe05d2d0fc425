package reconcile

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/soptable/portal/core/reconcile/mocks"
	"github.com/soptable/portal/core/user"
)

func TestComputeDiff(t *testing.T) {
	stored := user.User{ID: 1, Email: "a@x.com", Name: "A", Grade: "1", Role: user.RoleStudent, Phone: "010"}

	tests := []struct {
		name string
		c    user.Candidate
		want Diff
	}{
		{
			name: "changed grade only",
			c:    user.Candidate{Email: user.Opt("a@x.com"), Name: user.Opt("A"), Grade: user.Opt("2")},
			want: Diff{user.FieldGrade: "2"},
		},
		{
			name: "absent fields keep their stored value",
			c:    user.Candidate{Email: user.Opt("a@x.com")},
			want: Diff{},
		},
		{
			name: "supplied blank clears",
			c:    user.Candidate{Email: user.Opt("a@x.com"), Phone: user.Opt("")},
			want: Diff{user.FieldPhone: ""},
		},
		{
			name: "password is never diffed",
			c:    user.Candidate{Email: user.Opt("a@x.com"), Password: user.Opt("new")},
			want: Diff{},
		},
		{
			name: "values are compared as given",
			c:    user.Candidate{Email: user.Opt("a@x.com"), Name: user.Opt(" A"), Class: user.Opt("3")},
			want: Diff{user.FieldName: " A", user.FieldClass: "3"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeDiff(tt.c, stored))
		})
	}
}

func TestDiff_Fields(t *testing.T) {
	d := Diff{user.FieldLevel: "x", user.FieldName: "B", user.FieldGrade: "2"}
	assert.Equal(t, []string{user.FieldName, user.FieldGrade, user.FieldLevel}, d.Fields())
	assert.Empty(t, Diff{}.Fields())
}

func TestMatch(t *testing.T) {
	ctx := context.Background()
	c := validCandidate()
	c.Grade = user.Opt("2")

	t.Run("not found", func(t *testing.T) {
		gw := mocks.NewMockGateway(gomock.NewController(t))
		gw.EXPECT().FindByEmail(gomock.Any(), "a@x.com").Return(user.User{}, errors.Wrap(user.ErrNotFound, "getting user"))

		got, err := Match(ctx, c, gw)
		require.NoError(t, err)
		assert.False(t, got.Found)
	})

	t.Run("found", func(t *testing.T) {
		gw := mocks.NewMockGateway(gomock.NewController(t))
		gw.EXPECT().FindByEmail(gomock.Any(), "a@x.com").
			Return(user.User{ID: 7, Email: "a@x.com", Name: "A", Role: user.RoleStudent, Grade: "1"}, nil)

		got, err := Match(ctx, c, gw)
		require.NoError(t, err)
		assert.Equal(t, MatchResult{Found: true, StoredID: 7, Diff: Diff{user.FieldGrade: "2"}}, got)
	})

	t.Run("lookup failure", func(t *testing.T) {
		gw := mocks.NewMockGateway(gomock.NewController(t))
		gw.EXPECT().FindByEmail(gomock.Any(), "a@x.com").Return(user.User{}, errors.New("connection refused"))

		_, err := Match(ctx, c, gw)
		var lookupErr *LookupError
		require.ErrorAs(t, err, &lookupErr)
		assert.EqualError(t, err, "connection refused")
	})
}
