package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/soptable/portal/core"
	"github.com/soptable/portal/core/reconcile"
	"github.com/soptable/portal/core/user"
	logsvc "github.com/soptable/portal/services/logger"
	"github.com/soptable/portal/storage/database"
	sqlxrepos "github.com/soptable/portal/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZap(conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "building logger: %v\n", err)
		os.Exit(1)
	}
	logger := logsvc.NewRollbarLogger(zl.Named("admin"), conf)
	logger.Enable(!conf.Debug)
	defer func() { _ = logger.Sync() }()

	// set up DB
	if err = database.CreateIfNotExist(conf); err != nil {
		logger.Fatal("creating database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	defer db.Close()

	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db))

	// start CLI
	cli := commandLine{
		db:       db,
		usrSvc:   usrSvc,
		engine:   reconcile.NewEngine(usrSvc, reconcile.WithLogger(logger), reconcile.WithCallTimeout(conf.Batch.GatewayTimeout)),
		validate: validate,
		maxRows:  conf.Batch.MaxRows,
		in:       stdinFd(),
	}
	if err = cli.run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		_ = logger.Sync()
		_ = db.Close()
		os.Exit(1)
	}
}
