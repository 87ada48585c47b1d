// Command calyx scaffolds applications and services built on the calyx
// framework.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/calyxweb/calyx/kit/cli"
	"github.com/calyxweb/calyx/scaffold"
)

const version = "0.2.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "calyx",
		Short:         "calyx scaffolds service-oriented web applications",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	viper.SetEnvPrefix("CALYX")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	create := &cobra.Command{
		Use:   "create",
		Short: "Generate a new app or service skeleton",
	}
	create.AddCommand(createAppCmd(), createServiceCmd())

	root.AddCommand(create, versionCmd())
	return root
}

func createAppCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "app NAME",
		Short: "Generate a runnable application with a sample service",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			log, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			defer log.Sync()

			name := args[0]
			target := dir
			if target == "" {
				target = name
			}
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			return scaffold.New(log).CreateApp(target, name)
		},
	}

	cli.BindOptions(cmd, []cli.Opt{
		cli.NewOpt(&dir, "dir", "", "target directory, defaults to the app name"),
	})
	return cmd
}

func createServiceCmd() *cobra.Command {
	var servicesPath string

	cmd := &cobra.Command{
		Use:   "service NAME",
		Short: "Generate a service package inside an existing application",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			log, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			defer log.Sync()

			return scaffold.New(log).CreateService(servicesPath, args[0])
		},
	}

	cli.BindOptions(cmd, []cli.Opt{
		cli.NewOpt(&servicesPath, "services-path", "services", "directory holding the app's services"),
	})
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the calyx version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "calyx %s\n", version)
		},
	}
}
