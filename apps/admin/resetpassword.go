package main

import (
	"context"

	"github.com/pkg/errors"
)

const pwdMinLen = 6

var errPasswordTooShort = errors.Errorf("password must be at least %d characters", pwdMinLen)

func (cli *commandLine) resetPassword(ctx context.Context, uname, pwd string) error {
	if len(pwd) < pwdMinLen {
		return errPasswordTooShort
	}
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	if _, err = cli.usrSvc.SetPassword(ctx, usr, pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	return nil
}
