package commands

import (
	"fmt"

	"github.com/podium-chat/podium/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Write a sample configuration file with all default values.

The file is created at $XDG_CONFIG_HOME/podium/config.yaml unless
--config points somewhere else.

Examples:
  # Initialize config at the default location
  podium init

  # Initialize config at a custom location
  podium init --config /etc/podium/config.yaml

  # Overwrite an existing config file
  podium init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	var configPath string
	var err error

	if GetConfigFile() != "" {
		configPath = GetConfigFile()
		err = config.InitConfigToPath(configPath, initForce)
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Set the session secret: PODIUM_SESSION_SECRET or api.session.secret")
	fmt.Println("  2. Start the server: podium start")
	return nil
}
