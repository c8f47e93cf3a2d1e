package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"homeworkbot/internal/app"
	"homeworkbot/internal/failure"
	logx "homeworkbot/pkg/logx"
)

func main() {
	var opt app.Options
	flag.StringVar(&opt.ConfigPath, "config", "", "path to settings file (yaml or json); empty uses defaults")
	flag.StringVar(&opt.EnvFile, "env", ".env", "path to dotenv file with credentials")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(opt)
	if err != nil {
		// Credential failures are already logged by app.New.
		if !failure.Fatal(err) {
			logx.NewConsole("info").Critical("startup failed", logx.Err(err))
		}
		os.Exit(1)
	}

	if err := a.Start(ctx); err != nil {
		logx.NewConsole("info").Critical("start failed", logx.Err(err))
		os.Exit(1)
	}

	<-a.Done()

	reason := app.StopSignal
	if a.Err() != nil {
		reason = app.StopFatalError
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)

	if reason == app.StopFatalError {
		os.Exit(1)
	}
}
