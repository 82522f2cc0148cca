package main

import "github.com/yapay-ai/garmin-downloader/internal/cli"

func main() {
	cli.Execute()
}
