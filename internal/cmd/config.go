package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/specksdev/specks/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Config prints the effective configuration as YAML: defaults, the
config file, and SPECKS_* environment overrides merged in that order.`,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if file := viper.ConfigFileUsed(); file != "" {
		fmt.Fprintln(out, styleDim.Render("# loaded from "+file))
	} else {
		fmt.Fprintln(out, styleDim.Render("# no config file found, showing defaults ("+config.ConfigFile()+")"))
	}

	rendered, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return err
	}
	_, err = out.Write(rendered)
	return err
}
