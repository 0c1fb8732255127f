package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pokiface/api/internal/config"
	"pokiface/api/internal/credential"
	"pokiface/api/internal/presenter"
	"pokiface/api/internal/proxyclient"
	"pokiface/api/internal/terminal"
	"pokiface/api/internal/upload"
)

const cliOwner = "cli"

var (
	matchKey   string
	matchProxy string
	matchShare bool
)

var matchCmd = &cobra.Command{
	Use:   "match <photo>",
	Short: "Find the Pokémon twin of a photo from the terminal",
	Long: `Analyzes a JPG or PNG photo (up to 10MB) and prints the matching Pokémon with its artwork URL.

Examples:
  pokiface match selfie.jpg
  pokiface match selfie.jpg --key AIza... --share
  pokiface match selfie.png --proxy http://localhost:8000`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func init() {
	matchCmd.Flags().StringVar(&matchKey, "key", "", "Gemini API key to use instead of $GEMINI_API_KEY (validated first)")
	matchCmd.Flags().StringVar(&matchProxy, "proxy", "", "Base URL of a running 'pokiface serve' to call instead of the provider")
	matchCmd.Flags().BoolVar(&matchShare, "share", false, "Also print the share text")
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	ctx := cmdContext(cmd)

	a, err := newApp(ctx, "warn")
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	f := upload.FromBytes(filepath.Base(args[0]), "", data)

	ui := terminal.New(cmd.OutOrStdout())
	opts := presenter.DefaultOptions()
	opts.ImageDelay, opts.TextDelay = 0, 0
	opts.AnalyzeTimeout = a.cfg.AnalyzeTimeout
	opts.Placeholder = a.cfg.PlaceholderURL
	opts.ShareLink = a.cfg.ShareLink
	opts.ShareNotice = "Copy the text above to share your twin!"

	// the CLI never persists keys
	creds := credential.NewManager(credential.NewMemoryStore(), a.prober, a.log)

	var matcher presenter.Matcher = a.service
	if matchProxy != "" {
		matcher = proxyclient.New(matchProxy)
	}

	c := presenter.New(cliOwner, ui, matcher, creds, opts, a.log)
	defer c.Close()

	if err := useKey(ctx, a.cfg, c); err != nil {
		return err
	}
	if matchProxy == "" && matchKey == "" {
		if err := a.cfg.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}

	if err := c.Upload(ctx, f); err != nil {
		return err
	}
	if matchShare {
		return c.Share()
	}
	return nil
}

// useKey probes --key and keeps it for this run. Only the Gemini engine takes user keys.
func useKey(ctx context.Context, cfg *config.Config, c *presenter.Controller) error {
	if matchKey == "" {
		return nil
	}
	if cfg.Provider != config.ProviderGemini {
		return fmt.Errorf("--key is a Gemini API key and does not apply to the %s engine", cfg.Provider)
	}
	return c.SaveCredential(ctx, matchKey)
}
