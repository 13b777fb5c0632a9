package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/authkeeper/internal/server"
)

func main() {

	ctx := context.Background()
	app, err := server.NewApp(ctx, os.Args[1:], os.Stdout)

	if err != nil {
		log.Fatalf("%v", err)
	}
	defer app.Close()

	app.Run(ctx)

}
