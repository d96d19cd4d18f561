package main

import (
	"github.com/pkg/errors"

	"github.com/trezcool/temario/core/user"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	usr, err := cli.usrSvc.GetByUsernameOrEmail(uname)
	if err != nil {
		return err
	}
	if err = user.ValidatePassword(pwd, usr); err != nil {
		return err
	}
	return errors.Wrap(cli.usrSvc.SetPassword(uname, pwd), "setting password")
}
