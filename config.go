/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/bubblebox/bubbles"
)

type Config struct {
	bind         string
	port         int
	prefix       string
	profile      bool
	sceneTimeout time.Duration
	tlsCert      string
	tlsKey       string
	verbose      bool
	version      bool

	engine bubbles.Config

	log zerolog.Logger
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.sceneTimeout < 0 {
		return fmt.Errorf("invalid scene timeout (must not be negative): %s", c.sceneTimeout)
	}
	return c.engine.Validate()
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// bindEnv copies BUBBLEBOX_* environment variables onto any flag the user
// did not set explicitly.
func bindEnv(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

func normalizeFlags(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func engineFlags(fs *pflag.FlagSet, e *bubbles.Config) {
	d := bubbles.DefaultConfig()

	fs.IntVar(&e.MaxFragment, "max-fragment", d.MaxFragment, "maximum characters per bubble (env: BUBBLEBOX_MAX_FRAGMENT)")
	fs.IntVar(&e.MinFragment, "min-fragment", d.MinFragment, "fragments shorter than this are merged forward (env: BUBBLEBOX_MIN_FRAGMENT)")
	fs.IntVar(&e.WaveSize, "wave-size", d.WaveSize, "maximum bubbles shown per wave (env: BUBBLEBOX_WAVE_SIZE)")
	fs.DurationVar(&e.Stagger, "stagger", d.Stagger, "delay between bubbles of a wave (env: BUBBLEBOX_STAGGER)")
	fs.DurationVar(&e.WaveDwell, "wave-dwell", d.WaveDwell, "time a finished wave stays up before the next one (env: BUBBLEBOX_WAVE_DWELL)")
	fs.DurationVar(&e.Linger, "linger", d.Linger, "time bubbles remain after a speaker goes idle, 0 to keep them (env: BUBBLEBOX_LINGER)")
	fs.Float64Var(&e.Gap, "gap", d.Gap, "minimum pixels between bubbles and obstacles (env: BUBBLEBOX_GAP)")
	fs.Float64Var(&e.Margin, "margin", d.Margin, "pixels kept clear at the viewport edges (env: BUBBLEBOX_MARGIN)")
	fs.Float64Var(&e.SpiralStep, "spiral-step", d.SpiralStep, "ring spacing of the spiral search in pixels (env: BUBBLEBOX_SPIRAL_STEP)")
	fs.Float64Var(&e.SpiralRadius, "spiral-radius", d.SpiralRadius, "radius at which the spiral search gives up (env: BUBBLEBOX_SPIRAL_RADIUS)")

	e.JawClearance = d.JawClearance
	e.NudgePadding = d.NudgePadding
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("BUBBLEBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "bubblebox",
		Short:         "Collision-free speech bubbles for animated characters, served over websockets.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}

			cfg.log = newLogger(cfg)

			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.PersistentFlags()

	fs.SetNormalizeFunc(normalizeFlags)

	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: BUBBLEBOX_VERBOSE)")
	engineFlags(fs, &cfg.engine)

	local := cmd.Flags()

	local.SetNormalizeFunc(normalizeFlags)

	local.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: BUBBLEBOX_BIND)")
	local.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: BUBBLEBOX_PORT)")
	local.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: BUBBLEBOX_PREFIX)")
	local.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: BUBBLEBOX_PROFILE)")
	local.DurationVar(&cfg.sceneTimeout, "scene-timeout", 60*time.Minute, "time before idle scenes are closed, 0 to keep them (env: BUBBLEBOX_SCENE_TIMEOUT)")
	local.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: BUBBLEBOX_TLS_CERT)")
	local.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: BUBBLEBOX_TLS_KEY)")
	local.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: BUBBLEBOX_VERSION)")

	bindEnv(v, fs)
	bindEnv(v, local)

	cmd.AddCommand(newPreviewCmd(cfg))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("bubblebox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
