package cmd

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gush-sh/gush/core"
	"github.com/gush-sh/gush/core/config"
	"github.com/gush-sh/gush/core/logger"
)

var cfgPath string

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".gush")
}

func loadConfig() (*config.Configuration, error) {
	configuration, err := config.Load(cfgPath)
	if errors.Is(err, fs.ErrNotExist) {
		// Missing config is fine: run with defaults.
		return config.Default(), nil
	}
	return configuration, err
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "gush",
	Short: "An interactive command shell",
	Long: `gush is an interactive command shell with pipelines, I/O redirection
and the usual builtins (cd, echo, exit, history, pwd, type).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		configuration, err := loadConfig()
		if err != nil {
			return err
		}

		eventLog := logger.Nop()
		if configuration.AppLog {
			fd, err := configuration.OpenAppLog()
			if err != nil {
				log.Printf("can't open app log: %v", err)
			} else {
				defer fd.Close()
				eventLog = logger.NewJSONLines(fd)
			}
		}

		shell, err := core.NewShell(configuration, eventLog)
		if err != nil {
			return err
		}
		defer shell.Close()

		return shell.Run()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigDir(), "config directory")
}
