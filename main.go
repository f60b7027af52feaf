package main

import "github.com/frahmantamala/procure-to-pay/cmd"

func main() {
	cmd.Execute()
}
