package main

import "github.com/healthmesh/agent-coordination/internal/app"

func main() {
	app.Run("diet")
}
