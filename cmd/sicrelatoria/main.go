package main

import (
	"context"
	"os"
	"os/signal"

	"sicrelatoria/cmd/sicrelatoria/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	commands.ExecuteContext(ctx)
}
