package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/appetiteclub/idrepair/internal/commands"
	"github.com/charmbracelet/fang"
)

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	if err := fang.Execute(ctx, commands.NewRootCmd()); err != nil {
		os.Exit(1)
	}
}
