package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}

	root := &cobra.Command{
		Use:          "marketbot",
		Short:        "Telegram market analysis bot",
		SilenceUsage: true,
	}
	root.AddCommand(serveCMD(), searchCMD(), analyzeCMD(), chartCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
