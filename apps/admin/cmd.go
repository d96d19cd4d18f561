package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/temario/core"
	"github.com/trezcool/temario/core/user"
	sqlxrepos "github.com/trezcool/temario/storage/database/sqlx"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sqlx.DB
	usrRepo    user.Repository
	usrSvc     user.ServiceInterface
	validate   *validator.Validate
	translator ut.Translator
	out        io.Writer
}

func newCommandLine(db *sqlx.DB) *commandLine {
	usrRepo := sqlxrepos.NewUserRepository(db)
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	return &commandLine{
		db:         db,
		usrRepo:    usrRepo,
		usrSvc:     user.NewService(usrRepo),
		validate:   validate,
		translator: translator,
		out:        os.Stdout,
	}
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  adduser -username USERNAME -email EMAIL -role ROLE [-org ORG] [-super] - create or update a user")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  importusers -file FILE.xlsx [-sheet SHEET] - create users from a spreadsheet")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserRole := addUserCmd.String("role", string(user.RoleAdmin), "One of estudiante, docente, revisor, admin.")
	addUserOrg := addUserCmd.String("org", "", "The user's organization.")
	addUserSuper := addUserCmd.Bool("super", false, "Grant super user rights.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	importUsersCmd := flag.NewFlagSet("importusers", flag.ExitOnError)
	importUsersFile := importUsersCmd.String("file", "", "The .xlsx file to import.")
	importUsersSheet := importUsersCmd.String("sheet", defaultImportSheet, "The sheet holding the users.")

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" {
			addUserCmd.Usage()
			return errHelp
		}
		role, ok := user.ParseRole(*addUserRole)
		if !ok {
			return fmt.Errorf("invalid role %q", *addUserRole)
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserUname, *addUserEmail, pwd, role, *addUserOrg, *addUserSuper)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "importusers":
		if err := importUsersCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importUsersFile == "" {
			importUsersCmd.Usage()
			return errHelp
		}
		res, err := cli.importUsers(*importUsersFile, *importUsersSheet)
		if err != nil {
			return err
		}
		res.print(cli.out)
		return nil

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
