package main

import "github.com/samsamfire/golwm2m/cmd/lwm2mclient/cmd"

func main() {
	cmd.Execute()
}
