package main

import "github.com/frahmantamala/care-payments/cmd"

func main() {
	cmd.Execute()
}
