package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewCommandBindsFlags(t *testing.T) {
	var (
		addr    string
		count   int
		verbose bool
		wait    time.Duration
		ran     bool
	)

	cmd := NewCommand(&Program{
		Name: "testprog",
		Run: func() error {
			ran = true
			return nil
		},
		Opts: []Opt{
			NewOpt(&addr, "addr", ":8080", "listen address"),
			NewOpt(&count, "count", 3, "a count"),
			NewOpt(&verbose, "verbose", false, "verbosity"),
			NewOpt(&wait, "wait", time.Second, "wait duration"),
		},
	})

	cmd.SetArgs([]string{"--addr", ":9999", "--verbose", "--wait", "5s"})
	require.NoError(t, cmd.Execute())

	require.True(t, ran)
	require.Equal(t, ":9999", addr)
	require.Equal(t, 3, count)
	require.True(t, verbose)
	require.Equal(t, 5*time.Second, wait)
}

func TestNewCommandRespectsEnvVars(t *testing.T) {
	var addr string

	t.Setenv("ENVPROG_ADDR", ":7777")

	cmd := NewCommand(&Program{
		Name: "envprog",
		Run:  func() error { return nil },
		Opts: []Opt{
			NewOpt(&addr, "addr", ":8080", "listen address"),
		},
	})

	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())
	require.Equal(t, ":7777", addr)
}

func TestBindOptionsUnsupportedType(t *testing.T) {
	var dest float64

	cmd := NewCommand(&Program{
		Name: "badprog",
		Run:  func() error { return nil },
	})

	require.Panics(t, func() {
		BindOptions(cmd, []Opt{NewOpt(&dest, "ratio", 0.5, "a ratio")})
	})
}
