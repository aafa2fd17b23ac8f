// main.go
//
// Entry point for memorygame.
//   memorygame serve   -> HTTP game server
//   memorygame play    -> terminal game
// Configuration comes from the environment (and .env); see internal/config.

package main

import "github.com/robalobadob/memorygame/internal/cli"

func main() {
	cli.Execute()
}
