package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sigdec/tmc/config"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "tmc",
	Short: "A decoder for the TM1636/TM1637/TM1638 LED driver bus",
	Long: "The tmc tool decodes the bit-serial bus used by the TM1636/TM1637/TM1638\n" +
		"family of LED driver chips from logic-analyzer captures, in both the\n" +
		"2-wire (CLK+DIO) and 3-wire (CLK+DIO+STB) variants.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}

		// Initialize configuration
		if err := config.Initialize(); err != nil {
			cobra.CheckErr(fmt.Errorf("failed to initialize configuration: %w", err))
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
