package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	logLevel string
	verbose  bool
	llmName  string
)

var rootCmd = &cobra.Command{
	Use:   "pokiface",
	Short: "Find the Pokémon that looks like you",
	Long: `PokiFace sends a photo to a vision model, asks it which Pokémon the face resembles,
and pairs the answer with official artwork from PokeAPI.

Configuration comes from the environment (and a .env file in the working directory):
LLM_PROVIDER, GEMINI_API_KEY, AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_API_KEY, DATABASE_URL,
TELEGRAM_BOT_TOKEN, WEBHOOK_URL, PORT, LOG_LEVEL.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug | info | warn | error (default $LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().StringVar(&llmName, "llm", "", "Vision provider: gemini | azure (default $LLM_PROVIDER)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
