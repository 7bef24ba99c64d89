package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mahd-dev/riwaq/internal/bootstrap"
)

func main() {
	root := bootstrap.NewRootCommand()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
