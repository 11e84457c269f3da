package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pkt.systems/agentpanel/core"
	"pkt.systems/agentpanel/internal/agent"
	"pkt.systems/agentpanel/internal/appconfig"
	"pkt.systems/agentpanel/internal/format"
	"pkt.systems/agentpanel/internal/grab"
	"pkt.systems/agentpanel/internal/runnerconfig"
	"pkt.systems/agentpanel/schema"
	"pkt.systems/pslog"
)

// envPrefix scopes environment overrides, e.g. AGENTPANEL_BINARY.
const envPrefix = "AGENTPANEL"

// sessionFlags are shared by every command that talks to the agent.
type sessionFlags struct {
	v *viper.Viper
}

func newSessionFlags(cmd *cobra.Command) *sessionFlags {
	flags := cmd.Flags()
	flags.StringP("config", "c", "", "panel config record (default ~/.config/claude-panel/config.json)")
	flags.String("launcher", "", "agent launcher YAML file (binary, args, env, working_dir)")
	flags.String("binary", "", "agent binary (overrides launcher)")
	flags.StringArray("arg", nil, "extra agent args (repeatable)")
	flags.StringArray("env", nil, "extra agent env (repeatable KEY=VAL)")
	flags.String("workdir", "", "agent working directory (default current directory)")
	flags.String("mode", "", "permission mode for this run: normal, sudo or dangerous")

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, name := range []string{"config", "launcher", "binary", "workdir", "mode"} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}
	return &sessionFlags{v: v}
}

func (f *sessionFlags) launcher(cmd *cobra.Command) (runnerconfig.Config, error) {
	cfg := runnerconfig.Default()
	if path := strings.TrimSpace(f.v.GetString("launcher")); path != "" {
		loaded, err := runnerconfig.Load(path)
		if err != nil {
			return runnerconfig.Config{}, err
		}
		cfg = loaded
	}
	args, _ := cmd.Flags().GetStringArray("arg")
	env, _ := cmd.Flags().GetStringArray("env")
	return cfg.Merge(f.v.GetString("binary"), args, env, f.v.GetString("workdir")), nil
}

func (f *sessionFlags) modeOverride() (schema.PermissionMode, bool, error) {
	raw := strings.TrimSpace(f.v.GetString("mode"))
	if raw == "" {
		return "", false, nil
	}
	mode, err := schema.ParsePermissionMode(raw)
	if err != nil {
		return "", false, fmt.Errorf("--mode %q: %w", raw, err)
	}
	return mode, true, nil
}

type session struct {
	controller *core.Controller
	store      *appconfig.Store
	launcher   runnerconfig.Config
}

// openSession wires the agent runner, config store and controller.
func (f *sessionFlags) openSession(ctx context.Context, cmd *cobra.Command, sink core.EventSink, host grab.Host) (*session, error) {
	logger := pslog.Ctx(ctx)
	launcher, err := f.launcher(cmd)
	if err != nil {
		return nil, err
	}
	store, err := appconfig.NewStore(f.v.GetString("config"), logger)
	if err != nil {
		return nil, err
	}
	cfg := store.Load()
	if mode, ok, err := f.modeOverride(); err != nil {
		return nil, err
	} else if ok {
		cfg.PermissionMode = mode
	}
	workDir := launcher.WorkingDir
	if workDir == "" {
		if wd, err := os.Getwd(); err == nil {
			workDir = wd
		}
	}
	runner, err := agent.NewRunner(agent.Config{
		BinaryPath: launcher.Binary,
		ExtraArgs:  launcher.Args,
		Env:        launcher.EnvList(),
		WorkingDir: workDir,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("agent launcher ready", "binary", launcher.Binary, "args", len(launcher.Args), "workdir", workDir, "mode", cfg.PermissionMode)

	controller := core.NewController(cfg, core.ControllerDeps{
		Runner:      runner,
		Renderer:    format.NewPlainRenderer(),
		ConfigStore: store,
		EventSink:   sink,
		GrabHost:    host,
		WorkingDir:  workDir,
		Logger:      logger,
	})
	return &session{controller: controller, store: store, launcher: launcher}, nil
}
