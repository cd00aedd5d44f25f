package main

import (
	"media-transcode-service/app"
)

func main() {
	app.Run()
}
