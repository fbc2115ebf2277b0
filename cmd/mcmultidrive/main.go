// Command mcmultidrive takes turns hosting a Minecraft world shared
// through a drive folder.
package main

import "github.com/harupipipipi/mcmultidrive/internal/cli"

func main() {
	cli.Execute()
}
