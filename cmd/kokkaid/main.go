package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "kokkaid"}

	root.AddCommand(serveCMD(), migrateCMD(), syncCMD(), linkCMD())
	_ = root.Execute()
}
