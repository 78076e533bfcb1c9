package main

import "stockwatch_backend/internal/app"

func main() {
	app.Run()
}
