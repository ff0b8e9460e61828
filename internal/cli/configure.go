package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/convobridge/internal/config"
)

var (
	flagVerifyToken    string
	flagAppSecret      string
	flagPageToken      string
	flagNLUToken       string
	flagNLUSyncURL     string
	flagWebhookSyncURL string
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write the configuration file",
	Long: `Write a configuration file populated with defaults and the tokens
passed as flags. Existing settings in the file are preserved.`,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().StringVar(&flagVerifyToken, "verify-token", "", "webhook verification token")
	configureCmd.Flags().StringVar(&flagAppSecret, "app-secret", "", "channel app secret for signature checks")
	configureCmd.Flags().StringVar(&flagPageToken, "page-token", "", "channel send API access token")
	configureCmd.Flags().StringVar(&flagNLUToken, "nlu-token", "", "NLU backend access token")
	configureCmd.Flags().StringVar(&flagNLUSyncURL, "nlu-sync-url", "", "mirror endpoint for NLU responses")
	configureCmd.Flags().StringVar(&flagWebhookSyncURL, "webhook-sync-url", "", "mirror endpoint for inbound deliveries")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)

	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if flagVerifyToken != "" {
		cfg.Server.VerifyToken = flagVerifyToken
	}
	if flagAppSecret != "" {
		cfg.Server.AppSecret = flagAppSecret
	}
	if flagPageToken != "" {
		cfg.Messenger.AccessToken = flagPageToken
	}
	if flagNLUToken != "" {
		cfg.NLU.AccessToken = flagNLUToken
	}
	if flagNLUSyncURL != "" {
		cfg.Mirror.NLUSyncURL = flagNLUSyncURL
	}
	if flagWebhookSyncURL != "" {
		cfg.Mirror.WebhookSyncURL = flagWebhookSyncURL
	}

	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Println("Configuration saved")
	fmt.Println("You can now start the service with: convobridge start")
	return nil
}
