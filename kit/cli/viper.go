// Package cli binds command-line flags to environment variables, so every
// option of a calyx program can be set either way.
package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Opt is a single program option. DestP points at the variable receiving
// the value; the supported destination types are *string, *int, *bool and
// *time.Duration.
type Opt struct {
	DestP   any
	Flag    string
	Default any
	Desc    string
}

// NewOpt builds an Opt.
func NewOpt(destP any, flag string, dflt any, desc string) Opt {
	return Opt{
		DestP:   destP,
		Flag:    flag,
		Default: dflt,
		Desc:    desc,
	}
}

// Program describes a runnable command: its name, its options and the
// function executed once they are bound.
type Program struct {
	Name string
	Opts []Opt
	Run  func() error
}

// NewCommand turns a Program into a cobra command whose flags can also be
// set through environment variables prefixed with the upper-cased program
// name: --http-bind-address becomes NAME_HTTP_BIND_ADDRESS.
func NewCommand(p *Program) *cobra.Command {
	cmd := &cobra.Command{
		Use:  p.Name,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return p.Run()
		},
	}

	viper.SetEnvPrefix(strings.ToUpper(p.Name))
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	BindOptions(cmd, p.Opts)

	return cmd
}

// BindOptions registers opts as flags on cmd and mirrors each one into
// viper, so the destination holds the environment value until the flag
// overrides it on the command line.
func BindOptions(cmd *cobra.Command, opts []Opt) {
	for _, o := range opts {
		bindOpt(cmd, o)
	}
}

func bindOpt(cmd *cobra.Command, o Opt) {
	switch destP := o.DestP.(type) {
	case *string:
		cmd.Flags().StringVar(destP, o.Flag, defaultOf[string](o), o.Desc)
		mustBindPFlag(o.Flag, cmd)
		*destP = viper.GetString(o.Flag)
	case *int:
		cmd.Flags().IntVar(destP, o.Flag, defaultOf[int](o), o.Desc)
		mustBindPFlag(o.Flag, cmd)
		*destP = viper.GetInt(o.Flag)
	case *bool:
		cmd.Flags().BoolVar(destP, o.Flag, defaultOf[bool](o), o.Desc)
		mustBindPFlag(o.Flag, cmd)
		*destP = viper.GetBool(o.Flag)
	case *time.Duration:
		cmd.Flags().DurationVar(destP, o.Flag, defaultOf[time.Duration](o), o.Desc)
		mustBindPFlag(o.Flag, cmd)
		*destP = viper.GetDuration(o.Flag)
	default:
		panic(fmt.Errorf("unsupported option destination type %T for --%s", o.DestP, o.Flag))
	}
}

func defaultOf[T any](o Opt) T {
	var zero T
	if o.Default == nil {
		return zero
	}
	return o.Default.(T)
}

func mustBindPFlag(key string, cmd *cobra.Command) {
	if err := viper.BindPFlag(key, cmd.Flags().Lookup(key)); err != nil {
		panic(err)
	}
}
