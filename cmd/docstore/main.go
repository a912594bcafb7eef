package main

import (
	"github.com/nimburion/docstore/pkg/cli"
)

func main() {
	cli.Execute(cli.NewRootCommand(cli.Options{
		Name:        "docstore",
		Description: "Query MongoDB collections through the generic document repository",
	}))
}
