package main

import (
	"embed"
	"fmt"
	"os"

	"video-transcriber/internal/cli"
)

//go:embed frontend/index.html frontend/app.js frontend/style.css
var appAssets embed.FS

func main() {
	if err := cli.Execute(appAssets); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
