package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/visalms/lms/core"
	"github.com/visalms/lms/core/user"
	logsvc "github.com/visalms/lms/services/logger"
	"github.com/visalms/lms/storage/database"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.New(os.Stdout, conf.Debug).Named("ADMIN")

	ctx := context.Background()
	repos, err := database.OpenRepositories(ctx, conf, false)
	if err != nil {
		logger.Fatal("opening database", zap.Error(err))
	}

	cli := commandLine{
		usrSvc: user.NewService(repos.Users),
		out:    os.Stdout,
	}
	if repos.SQL != nil {
		cli.db = repos.SQL.DB
	}

	err = cli.run(ctx, os.Args[1:])
	if cErr := repos.Close(); cErr != nil {
		logger.Error("closing database", zap.Error(cErr))
	}
	if err != nil {
		if err != errHelp {
			logger.Error("command failed", zap.Error(err))
		}
		os.Exit(1)
	}
}
