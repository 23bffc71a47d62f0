package main

import "github.com/tassa-yoniso-manasi-karoto/mediagate/cmd"

func main() {
	cmd.Execute()
}
