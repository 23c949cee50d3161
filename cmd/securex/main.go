package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/merchantcapital/comcorp-idx-connector/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.RootCommand().ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}
