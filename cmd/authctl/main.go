package main

import (
	"context"
	"os"

	"github.com/dmitrijs2005/authkeeper/internal/authctl"
)

func main() {
	os.Exit(authctl.NewApp(os.Stdout, os.Stderr).Run(context.Background(), os.Args[1:]))
}
