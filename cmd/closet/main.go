// Command closet runs the closet HTTP API.
package main

import (
	"log/slog"
	"os"

	"closet/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		slog.Error("server.exit", "err", err)
		os.Exit(1)
	}
}
