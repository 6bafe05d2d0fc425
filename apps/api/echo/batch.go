package echoapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/soptable/portal/core"
	"github.com/soptable/portal/core/reconcile"
	"github.com/soptable/portal/core/user"
	sheetsvc "github.com/soptable/portal/services/sheet"
)

const uploadFileField = "file"

var errMissingFile = errors.New("file is required")

type batchApi struct {
	engine   *reconcile.Engine
	usrSvc   *user.Service
	validate *validator.Validate
	maxRows  int
}

func registerBatchAPI(g *echo.Group, engine *reconcile.Engine, usrSvc *user.Service, validate *validator.Validate, maxRows int) {
	api := batchApi{
		engine:   engine,
		usrSvc:   usrSvc,
		validate: validate,
		maxRows:  maxRows,
	}

	ug := g.Group("/users")
	ug.POST("/batch-upsert", api.upsert)
	ug.POST("/batch-upsert/upload", api.upload)
	ug.GET("/batch-upsert/template", api.template)
	ug.GET("/export", api.export)
	ug.POST("/restore", api.restore)
}

func (api *batchApi) upsert(ctx echo.Context) error {
	var req reconcile.BatchRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}
	candidates, err := reconcile.DecodeBatch(req.Users, api.maxRows)
	if err != nil {
		return err
	}

	sum := api.engine.Reconcile(ctx.Request().Context(), candidates)
	if !queryFlag(ctx, verboseParam) {
		sum.Results = nil
	}
	return ctx.JSON(http.StatusOK, sum)
}

type (
	UploadRowError struct {
		Idx   int    `json:"idx"`
		Row   int    `json:"row"`
		Email string `json:"email"`
		Error string `json:"error"`
	}

	UploadResponse struct {
		Inserted int                 `json:"inserted"`
		Updated  int                 `json:"updated"`
		Skipped  int                 `json:"skipped"`
		Errors   []UploadRowError    `json:"errors"`
		Warnings []string            `json:"warnings"`
		Results  []reconcile.Outcome `json:"results,omitempty"`
	}
)

func (api *batchApi) upload(ctx echo.Context) error {
	fh, err := ctx.FormFile(uploadFileField)
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: uploadFileField, Error: errMissingFile.Error()})
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	sh, err := sheetsvc.Parse(f, fh.Filename)
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: uploadFileField, Error: errors.Cause(err).Error()})
	}
	if len(sh.Rows) == 0 {
		return core.NewValidationError(reconcile.ErrEmptyBatch)
	}
	if api.maxRows > 0 && len(sh.Rows) > api.maxRows {
		return core.NewValidationError(fmt.Errorf("too many users: %d (max %d)", len(sh.Rows), api.maxRows))
	}

	sum := api.engine.Reconcile(ctx.Request().Context(), sh.Candidates())
	res := UploadResponse{
		Inserted: sum.Inserted,
		Updated:  sum.Updated,
		Skipped:  sum.Skipped,
		Errors:   make([]UploadRowError, 0, len(sum.Errors)),
		Warnings: sh.Warnings,
	}
	if res.Warnings == nil {
		res.Warnings = []string{}
	}
	for _, e := range sum.Errors {
		res.Errors = append(res.Errors, UploadRowError{Idx: e.Idx, Row: sh.Line(e.Idx), Email: e.Email, Error: e.Error})
	}
	if queryFlag(ctx, verboseParam) {
		res.Results = sum.Results
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *batchApi) template(ctx echo.Context) error {
	var buf bytes.Buffer
	if err := sheetsvc.WriteTemplate(&buf); err != nil {
		return errors.Wrap(err, "writing upload template")
	}
	return attachment(ctx, "user_upload_template.xlsx", buf.Bytes())
}

func (api *batchApi) export(ctx echo.Context) error {
	users, err := api.usrSvc.Query(ctx.Request().Context(), nil, []core.DBOrdering{{Field: "id", Ascending: true}})
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	var buf bytes.Buffer
	if err = sheetsvc.WriteUsers(&buf, users); err != nil {
		return errors.Wrap(err, "writing users")
	}
	return attachment(ctx, "users.xlsx", buf.Bytes())
}

func (api *batchApi) restore(ctx echo.Context) error {
	var data []user.RestoreUser
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	if len(data) == 0 {
		return core.NewValidationError(reconcile.ErrEmptyBatch)
	}
	for i := range data {
		if err := api.validate.Struct(data[i]); err != nil {
			return err
		}
	}

	if err := api.usrSvc.Restore(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "restoring users")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"restored": len(data)})
}

func attachment(ctx echo.Context, filename string, content []byte) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, sheetsvc.ContentTypeXLSX, content)
}
