// Package main is the entry point for the sentinel-search service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/sentinel-search/cmd/search/app"
)

func main() {
	app.NewApp().Run()
}
