package main

import (
	"log"

	tool "github.com/velprakashr08-max/Frutify/internal/tools/topology"
)

func main() {
	if err := tool.NewRootCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}
