package main

import (
	"errors"

	"github.com/trezcool/goose"

	"github.com/visalms/lms/storage/database"
)

var (
	gooseRunFunc = goose.RunFS // mockable

	errNoSQLDatabase = errors.New("migrations only apply to the postgres engine")
)

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoSQLDatabase
	}
	return gooseRunFunc(args[0], cli.db, database.MigrationsFS, database.MigrationsDir, args[1:]...)
}
