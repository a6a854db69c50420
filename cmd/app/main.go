// Command app runs the transcriber against the on-disk frontend folder,
// for front end development without rebuilding the embedded assets.
package main

import (
	"fmt"
	"os"

	"video-transcriber/internal/cli"
)

func main() {
	if err := cli.Execute(nil); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
