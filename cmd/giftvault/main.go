package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/giftvault/internal/app"
	"github.com/dmitrijs2005/giftvault/internal/client/config"
)

func main() {

	ctx := context.Background()
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	a, err := app.NewApp(ctx, cfg, app.Ethereum, os.Stdin, os.Stdout)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer a.Close()

	a.Run(ctx)

}
