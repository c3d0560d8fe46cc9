package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "searchagent"}

	root.AddCommand(askCMD(), serveCMD())
	_ = root.Execute()
}
