package main

import "github.com/thadeucbr/assistentev4-sub000/cmd"

func main() {
	cmd.Execute()
}
