// Package di wires the API binary together with a dig container.
package di

import (
	"context"
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	echoapi "github.com/soptable/portal/apps/api/echo"
	"github.com/soptable/portal/core"
	"github.com/soptable/portal/core/reconcile"
	"github.com/soptable/portal/core/settings"
	"github.com/soptable/portal/core/user"
	appfs "github.com/soptable/portal/fs"
	emailsvc "github.com/soptable/portal/services/email"
	logsvc "github.com/soptable/portal/services/logger"
	sheetsvc "github.com/soptable/portal/services/sheet"
	"github.com/soptable/portal/storage/database"
	sqlxrepos "github.com/soptable/portal/storage/database/sqlx"
)

// DBLoggerParam selects the logger dedicated to database events.
type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newZap(conf *core.Config) *zap.Logger {
	zl, err := logsvc.NewZap(conf)
	if err != nil {
		log.Fatalf("building zap logger: %v", err)
	}
	return zl
}

func newLogger(conf *core.Config, zl *zap.Logger) (core.Logger, *logsvc.RollbarLogger) {
	logger := logsvc.NewRollbarLogger(zl.Named("api"), conf)
	logger.Enable(!conf.Debug)
	return logger, logger
}

func newDBLogger(conf *core.Config, zl *zap.Logger) core.Logger {
	logger := logsvc.NewRollbarLogger(zl.Named("db"), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DB) {
	db, err := database.Setup(context.Background(), conf)
	if err != nil {
		loggerParam.Logger.Fatal("setting up database", err)
	}
	return db, db
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if err := core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf); err != nil {
		logger.Fatal("parsing email templates", err)
	}
	return emailsvc.NewService(conf, logger)
}

func newRegistry() (*prometheus.Registry, prometheus.Registerer, prometheus.Gatherer) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg, reg, reg
}

func newEngine(conf *core.Config, usrSvc *user.Service, logger core.Logger, mailSvc core.EmailService, reg prometheus.Registerer) *reconcile.Engine {
	return reconcile.NewEngine(usrSvc,
		reconcile.WithLogger(logger),
		reconcile.WithMetrics(reconcile.NewMetrics(reg)),
		reconcile.WithNotifier(reconcile.NewMailNotifier(mailSvc, conf.Batch.ReportRecipients).AttachErrors(sheetsvc.ErrorReport())),
		reconcile.WithCallTimeout(conf.Batch.GatewayTimeout),
	)
}

type serverParams struct {
	dig.In

	Conf        *core.Config
	Logger      core.Logger
	DB          core.DB
	UserSvc     *user.Service
	SettingsSvc *settings.Service
	Engine      *reconcile.Engine
	Validate    *validator.Validate
	Translator  ut.Translator
	Gatherer    prometheus.Gatherer
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:        p.Conf,
		Logger:      p.Logger,
		DB:          p.DB,
		UserSvc:     p.UserSvc,
		SettingsSvc: p.SettingsSvc,
		Engine:      p.Engine,
		Validate:    p.Validate,
		Translator:  p.Translator,
		Gatherer:    p.Gatherer,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newZap))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newEmailService))
	must(c.Provide(newRegistry))
	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(sqlxrepos.NewSettingsRepository))
	must(c.Provide(user.NewService))
	must(c.Provide(settings.NewService))
	must(c.Provide(newEngine))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
