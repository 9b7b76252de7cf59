// Package cmd implements routa's command-line surface: `routa run` drives
// a single workspace to completion in-process, and `routa serve` exposes
// the coordination core over HTTP, MCP, and websocket transports.
package cmd

import (
	"strings"

	"github.com/routa-dev/routa/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "routa",
	Short: "A multi-agent coordination core for planning, execution, and verification",
	Long: `routa drives a workspace through the ROUTA/CRAFTER/GATE coordination
lifecycle: a planning agent decomposes a request into tasks, CRAFTER agents
execute them wave by wave, and a GATE agent verifies each wave before the
next one starts.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/routa/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/routa")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("ROUTA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	_ = viper.ReadInConfig()
}
