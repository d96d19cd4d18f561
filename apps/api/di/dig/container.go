package dig_container

import (
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/temario/apps/api/echo"
	"github.com/trezcool/temario/core"
	"github.com/trezcool/temario/core/topic"
	"github.com/trezcool/temario/core/user"
	emailsvc "github.com/trezcool/temario/services/email"
	logsvc "github.com/trezcool/temario/services/logger"
	trashsvc "github.com/trezcool/temario/services/trash"
	"github.com/trezcool/temario/storage/database"
	sqlxrepos "github.com/trezcool/temario/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type ServerParam struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	UserSvc    user.ServiceInterface
	TopicSvc   topic.ServiceInterface
	Validate   *validator.Validate
	Translator ut.Translator
}

func newComponentLogger(conf *core.Config, component string) core.Logger {
	local := logsvc.NewLocalLogger(os.Stdout, conf).With().Str("component", component).Logger()
	logger := logsvc.NewRollbarLogger(local, conf)
	logger.Enable(conf.RollbarToken != "" && !conf.Debug)
	return logger
}

func newLogger(conf *core.Config) core.Logger {
	return newComponentLogger(conf, "api")
}

func newDBLogger(conf *core.Config) core.Logger {
	return newComponentLogger(conf, "db")
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DBExecutor) {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newServer(p ServerParam) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		UserSvc:    p.UserSvc,
		TopicSvc:   p.TopicSvc,
		Validate:   p.Validate,
		Translator: p.Translator,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(sqlxrepos.NewUserRepository, dig.As(new(user.Repository))))
	must(c.Provide(sqlxrepos.NewTopicRepository, dig.As(new(topic.Repository))))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(user.NewService, dig.As(new(user.ServiceInterface), new(topic.UserFinder))))
	must(c.Provide(topic.NewService, dig.As(new(topic.ServiceInterface), new(trashsvc.Purger))))
	must(c.Provide(trashsvc.NewSweeper))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
