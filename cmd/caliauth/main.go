package main

import "github.com/calisound/caliauth/cmd/caliauth/cmd"

func main() {
	cmd.Execute()
}
