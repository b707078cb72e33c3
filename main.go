package main

import "github.com/worldcoin/posthog-ios/cmd"

func main() {
	cmd.Execute()
}
