package main

import (
	"context"
	"log"

	"github.com/ettaverse/etta-keychain-sub002/internal/agent"
	"github.com/ettaverse/etta-keychain-sub002/internal/agent/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := agent.NewApp(ctx, cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
	}

}
