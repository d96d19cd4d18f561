package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	dig_container "github.com/trezcool/temario/apps/api/di/dig"
	echoapi "github.com/trezcool/temario/apps/api/echo"
	"github.com/trezcool/temario/core"
	"github.com/trezcool/temario/core/topic"
	"github.com/trezcool/temario/core/user"
	trashsvc "github.com/trezcool/temario/services/trash"
)

// app holds everything the container resolves for the API process.
type app struct {
	conf     *core.Config
	logger   core.Logger
	dbLogger core.Logger
	db       *sqlx.DB
	sweeper  *trashsvc.Sweeper
	server   *echoapi.Server
}

func startWithDig() {
	c := dig_container.New()

	must(c.Invoke(func(
		conf *core.Config,
		apiLogger core.Logger,
		dbLoggerParam dig_container.DBLoggerParam,
		db *sqlx.DB,
		validate *validator.Validate,
		translator ut.Translator,
		sweeper *trashsvc.Sweeper,
		server *echoapi.Server,
	) {
		a := app{
			conf:     conf,
			logger:   apiLogger,
			dbLogger: dbLoggerParam.Logger,
			db:       db,
			sweeper:  sweeper,
			server:   server,
		}
		a.init(validate, translator)
		a.run()
	}))
}

func (a *app) init(validate *validator.Validate, translator ut.Translator) {
	a.logger.Info(fmt.Sprintf("Application initializing : version %q", a.conf.Build))

	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	topic.InitValidators(validate, translator)

	if err := core.ParseEmailTemplates(); err != nil {
		a.logger.Fatal(fmt.Sprintf("parsing email templates: %v", err), err)
	}
}

func (a *app) run() {
	defer func() {
		if err := a.db.Close(); err != nil {
			a.dbLogger.Fatal("Failed to close", err)
		}
	}()
	defer a.logger.Info("Application stopped")

	a.serveDebug()

	if err := a.sweeper.Start(); err != nil {
		a.logger.Fatal(fmt.Sprintf("starting trash sweeper: %v", err), err)
	}
	defer a.sweeper.Stop()

	go a.server.Start()

	select {
	case err := <-a.server.Errors():
		a.logger.Fatal(fmt.Sprintf("server error: %v", err), err)
	case sig := <-a.server.ShutdownSignal():
		a.shutdown(sig)
	}
}

// serveDebug exposes /debug/pprof and /debug/vars on the debug host.
func (a *app) serveDebug() {
	expvar.NewString("build").Set(a.conf.Build)
	expvar.NewString("env").Set(a.conf.Env)
	expvar.NewString("db_driver").Set(a.db.DriverName())

	go func() {
		if err := http.ListenAndServe(a.conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			a.logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()
}

// shutdown gives outstanding requests ShutdownTimeout to complete, then forces the listener closed.
func (a *app) shutdown(sig os.Signal) {
	a.logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

	ctx, cancel := context.WithTimeout(context.Background(), a.conf.Server.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

		if err = a.server.Close(); err != nil {
			a.logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
		}
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
