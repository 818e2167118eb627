package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath *string
	verbose    *bool
	httpDump   *string
)

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "", "The config file to read, sicrelatoria.json5 is looked up from the working directory by default.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug messages.")
	httpDump = rootCmd.PersistentFlags().String("http-dump", "", "Write every http exchange to numbered files in a new run directory under this directory.")
}

var rootCmd = &cobra.Command{
	Use:   "sicrelatoria <terms...> [--max <n>] [--dir <path>] [--selenium]",
	Short: "sicrelatoria searches the SIC relatoria portal and downloads the rulings it finds.",
	// failures are reported on stdout, the process always exits cleanly
	SilenceErrors: true,
	SilenceUsage:  true,
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stdout, "error:", err)
	}
}
