package main

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/shuttertrack/shuttertrack/internal/config"
)

func main() {
	// Config flags are declared on pflag.CommandLine so viper can bind them;
	// cobra parses them via the shared flag pointers.
	config.InitFlags()
	rootCmd.PersistentFlags().AddFlagSet(pflag.CommandLine)
	Execute()
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "shuttertrack",
	Short: "Offline-first job tracker for photographers",
	Long: `ShutterTrack keeps your photography bookings on this machine and mirrors
them to your account in the cloud. Work offline; sync when you are back.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	// Place version check in PreRun to ensure flags are parsed first
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		versionFlag, _ := cmd.Flags().GetBool("version")
		if versionFlag {
			pterm.Info.Println(config.GetVersionInfo())
			os.Exit(0)
		}
	}

	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("version", "v", false, "Show version information")
	rootCmd.AddCommand(
		newSignupCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newStatusCmd(),
		newSyncCmd(),
		newResumeCmd(),
		newCallbackCmd(),
		newJobCmd(),
		newJobTypeCmd(),
	)
}
