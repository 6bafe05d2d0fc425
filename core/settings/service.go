// Package settings holds the portal-wide settings: the role-menu permission matrix with its
// change log, and the editable page titles.
package settings

import (
	"context"
	"encoding/json"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/pkg/errors"

	"github.com/soptable/portal/core"
)

const (
	roleMenuKey    = "role_menu"
	titleKeyPrefix = "title:"

	maxTitleLen = 100
)

var (
	ErrNotFound     = errors.New("setting not found")
	ErrUnknownTitle = errors.New("unknown page title")
)

// TitleDefaults are the page titles used until an admin renames a page.
var TitleDefaults = map[string]string{
	"survey":    "수업조사표",
	"plan":      "수업 계획표",
	"timetable": "시간표",
	"enroll":    "수강신청",
	"record":    "학생부",
}

type (
	Repository interface {
		// GetSetting returns ErrNotFound when key was never saved.
		GetSetting(ctx context.Context, key string) (string, error)
		PutSetting(ctx context.Context, key, value string) error
		AppendRoleMenuLog(ctx context.Context, entry LogEntry) error
		// QueryRoleMenuLog returns the latest entries first.
		QueryRoleMenuLog(ctx context.Context, limit int) ([]LogEntry, error)
	}

	Service struct {
		repo      Repository
		sanitizer *bluemonday.Policy
		now       func() time.Time
	}
)

func NewService(repo Repository) *Service {
	return &Service{
		repo:      repo,
		sanitizer: bluemonday.StrictPolicy(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RoleMenu returns the saved matrix, or the defaults when none was saved yet.
func (svc *Service) RoleMenu(ctx context.Context) (RoleMenu, error) {
	raw, err := svc.repo.GetSetting(ctx, roleMenuKey)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return DefaultRoleMenu()
		}
		return nil, errors.Wrap(err, "getting role menu")
	}
	var rm RoleMenu
	if err := json.Unmarshal([]byte(raw), &rm); err != nil {
		return nil, errors.Wrap(err, "decoding role menu")
	}
	return rm, nil
}

// SaveRoleMenu stores rm and logs what changed compared to the current matrix.
func (svc *Service) SaveRoleMenu(ctx context.Context, rm RoleMenu) ([]Change, error) {
	if len(rm) == 0 {
		return nil, core.NewValidationError(errors.New("role menu must not be empty"))
	}
	prev, err := svc.RoleMenu(ctx)
	if err != nil {
		return nil, err
	}

	changes := DiffRoleMenu(prev, rm)
	if len(changes) > 0 {
		if err := svc.repo.AppendRoleMenuLog(ctx, LogEntry{Time: svc.now(), Changes: changes}); err != nil {
			return nil, errors.Wrap(err, "appending role menu log")
		}
	}

	raw, err := json.Marshal(rm)
	if err != nil {
		return nil, errors.Wrap(err, "encoding role menu")
	}
	if err := svc.repo.PutSetting(ctx, roleMenuKey, string(raw)); err != nil {
		return nil, errors.Wrap(err, "saving role menu")
	}
	return changes, nil
}

func (svc *Service) RoleMenuLog(ctx context.Context, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return svc.repo.QueryRoleMenuLog(ctx, limit)
}

// Title returns the title of a page kind (survey, plan, timetable, enroll, record).
func (svc *Service) Title(ctx context.Context, kind string) (string, error) {
	def, ok := TitleDefaults[kind]
	if !ok {
		return "", ErrUnknownTitle
	}
	title, err := svc.repo.GetSetting(ctx, titleKeyPrefix+kind)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return def, nil
		}
		return "", errors.Wrap(err, "getting title")
	}
	return title, nil
}

// SetTitle stores a page title stripped of any markup.
func (svc *Service) SetTitle(ctx context.Context, kind, title string) (string, error) {
	if _, ok := TitleDefaults[kind]; !ok {
		return "", ErrUnknownTitle
	}
	title = core.CleanString(svc.sanitizer.Sanitize(title))
	if title == "" {
		return "", core.NewValidationError(nil, core.FieldError{Field: "title", Error: "this field is required"})
	}
	if len([]rune(title)) > maxTitleLen {
		return "", core.NewValidationError(nil, core.FieldError{Field: "title", Error: "title is too long"})
	}
	if err := svc.repo.PutSetting(ctx, titleKeyPrefix+kind, title); err != nil {
		return "", errors.Wrap(err, "saving title")
	}
	return title, nil
}
