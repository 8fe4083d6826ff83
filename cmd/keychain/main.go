package main

import (
	"context"
	"log"

	"github.com/ettaverse/etta-keychain-sub002/internal/agent"
	"github.com/ettaverse/etta-keychain-sub002/internal/agent/config"
	"github.com/ettaverse/etta-keychain-sub002/internal/cli"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	ag, err := agent.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}
	defer ag.Close(ctx)

	app, err := cli.NewApp(ctx, ag)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
