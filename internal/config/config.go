// Package config holds the installer settings. Values come from built-in
// defaults, then an optional TOML file, then command line flags.
package config

import (
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gopherclass/go-shellquote"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/xuibot/botctl/pkg/envfile"
	"github.com/xuibot/botctl/pkg/installer"
	"github.com/xuibot/botctl/pkg/unit"
)

const DefaultPath = "/etc/botctl/botctl.toml"

// defaultPath is read when no file is given.
var defaultPath = DefaultPath

type Install struct {
	Path         string
	ServiceName  string
	Description  string
	User         string
	Group        string
	Source       string
	Marker       string
	Entry        string
	EntryArgs    []string
	Requirements string
	EnvTemplates []string
	// Env holds KEY=VALUE pairs written to a newly created .env.
	Env         []string
	UnitDir     string
	RestartSec  int
	SettleDelay time.Duration

	AssumeYes      bool
	SkipUpgrade    bool
	BestEffortCopy bool
}

func Defaults() Install {
	return Install{
		Path:         installer.DefaultInstallDir,
		ServiceName:  installer.DefaultServiceName,
		Description:  installer.DefaultDescription,
		Source:       ".",
		Marker:       installer.DefaultMarker,
		Entry:        installer.DefaultEntry,
		Requirements: installer.DefaultRequirements,
		EnvTemplates: envfile.TemplateNames,
		UnitDir:      unit.DefaultUnitDir,
		RestartSec:   unit.DefaultRestartSec,
		SettleDelay:  installer.DefaultSettleDelay,
	}
}

type fileConfig struct {
	Path           string            `toml:"path"`
	ServiceName    string            `toml:"service_name"`
	Description    string            `toml:"description"`
	User           string            `toml:"user"`
	Group          string            `toml:"group"`
	Source         string            `toml:"source"`
	Marker         string            `toml:"marker"`
	Entry          string            `toml:"entry"`
	EntryArgs      string            `toml:"entry_args"`
	Requirements   string            `toml:"requirements"`
	EnvTemplates   []string          `toml:"env_templates"`
	Env            map[string]string `toml:"env"`
	UnitDir        string            `toml:"unit_dir"`
	RestartSec     int               `toml:"restart_sec"`
	SettleDelay    string            `toml:"settle_delay"`
	AssumeYes      bool              `toml:"assume_yes"`
	SkipUpgrade    bool              `toml:"skip_upgrade"`
	BestEffortCopy bool              `toml:"best_effort_copy"`
}

// Load reads the configuration file on top of the defaults.
// A missing file is an error only when the path was given explicitly.
func Load(path string) (Install, error) {
	cfg := Defaults()

	explicit := path != ""
	if !explicit {
		path = defaultPath
	}

	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return cfg, errors.WithMessage(err, "failed to stat config file")
	}

	return LoadFile(path, cfg)
}

// LoadFile applies the keys defined in the TOML file to cfg.
//
//nolint:gocognit,gocyclo,funlen
func LoadFile(path string, cfg Install) (Install, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return cfg, errors.WithMessagef(err, "failed to decode config file %s", path)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return cfg, errors.Errorf("unknown config keys in %s: %v", path, undecoded)
	}

	if meta.IsDefined("path") {
		cfg.Path = strings.TrimSpace(raw.Path)
	}
	if meta.IsDefined("service_name") {
		cfg.ServiceName = strings.TrimSpace(raw.ServiceName)
	}
	if meta.IsDefined("description") {
		cfg.Description = strings.TrimSpace(raw.Description)
	}
	if meta.IsDefined("user") {
		cfg.User = strings.TrimSpace(raw.User)
	}
	if meta.IsDefined("group") {
		cfg.Group = strings.TrimSpace(raw.Group)
	}
	if meta.IsDefined("source") {
		cfg.Source = strings.TrimSpace(raw.Source)
	}
	if meta.IsDefined("marker") {
		cfg.Marker = strings.TrimSpace(raw.Marker)
	}
	if meta.IsDefined("entry") {
		cfg.Entry = strings.TrimSpace(raw.Entry)
	}
	if meta.IsDefined("entry_args") {
		cfg.EntryArgs, err = shellquote.Split(raw.EntryArgs)
		if err != nil {
			return cfg, errors.WithMessage(err, "failed to parse entry_args")
		}
	}
	if meta.IsDefined("requirements") {
		cfg.Requirements = strings.TrimSpace(raw.Requirements)
	}
	if meta.IsDefined("env_templates") {
		cfg.EnvTemplates = lo.Compact(lo.Map(raw.EnvTemplates, func(s string, _ int) string {
			return strings.TrimSpace(s)
		}))
	}
	if meta.IsDefined("env") {
		keys := lo.Keys(raw.Env)
		sort.Strings(keys)
		cfg.Env = lo.Map(keys, func(k string, _ int) string {
			return k + "=" + raw.Env[k]
		})
	}
	if meta.IsDefined("unit_dir") {
		cfg.UnitDir = strings.TrimSpace(raw.UnitDir)
	}
	if meta.IsDefined("restart_sec") {
		cfg.RestartSec = raw.RestartSec
	}
	if meta.IsDefined("settle_delay") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.SettleDelay))
		if err != nil {
			return cfg, errors.WithMessage(err, "failed to parse settle_delay")
		}
		cfg.SettleDelay = d
	}
	if meta.IsDefined("assume_yes") {
		cfg.AssumeYes = raw.AssumeYes
	}
	if meta.IsDefined("skip_upgrade") {
		cfg.SkipUpgrade = raw.SkipUpgrade
	}
	if meta.IsDefined("best_effort_copy") {
		cfg.BestEffortCopy = raw.BestEffortCopy
	}

	return cfg, nil
}

// Merge overlays values set in o. Env pairs are appended, later keys win.
func (c Install) Merge(o Install) Install {
	c.Path = lo.CoalesceOrEmpty(o.Path, c.Path)
	c.ServiceName = lo.CoalesceOrEmpty(o.ServiceName, c.ServiceName)
	c.Description = lo.CoalesceOrEmpty(o.Description, c.Description)
	c.User = lo.CoalesceOrEmpty(o.User, c.User)
	c.Group = lo.CoalesceOrEmpty(o.Group, c.Group)
	c.Source = lo.CoalesceOrEmpty(o.Source, c.Source)
	c.Marker = lo.CoalesceOrEmpty(o.Marker, c.Marker)
	c.Entry = lo.CoalesceOrEmpty(o.Entry, c.Entry)
	c.Requirements = lo.CoalesceOrEmpty(o.Requirements, c.Requirements)
	c.UnitDir = lo.CoalesceOrEmpty(o.UnitDir, c.UnitDir)
	c.RestartSec = lo.CoalesceOrEmpty(o.RestartSec, c.RestartSec)
	c.SettleDelay = lo.CoalesceOrEmpty(o.SettleDelay, c.SettleDelay)

	if len(o.EntryArgs) > 0 {
		c.EntryArgs = o.EntryArgs
	}
	if len(o.EnvTemplates) > 0 {
		c.EnvTemplates = o.EnvTemplates
	}

	c.Env = append(append([]string{}, c.Env...), o.Env...)

	c.AssumeYes = c.AssumeYes || o.AssumeYes
	c.SkipUpgrade = c.SkipUpgrade || o.SkipUpgrade
	c.BestEffortCopy = c.BestEffortCopy || o.BestEffortCopy

	return c
}

// EnvAssignments parses Env, keeping the last value of repeated keys
// at the position of their first occurrence.
func (c Install) EnvAssignments() ([]envfile.Assignment, error) {
	parsed, err := envfile.ParseAssignments(c.Env)
	if err != nil {
		return nil, err
	}

	last := lo.SliceToMap(parsed, func(a envfile.Assignment) (string, string) {
		return a.Key, a.Value
	})

	unique := lo.UniqBy(parsed, func(a envfile.Assignment) string {
		return a.Key
	})

	return lo.Map(unique, func(a envfile.Assignment, _ int) envfile.Assignment {
		return envfile.Assignment{Key: a.Key, Value: last[a.Key]}
	}), nil
}

// InstallerOptions converts the configuration to installer options.
func (c Install) InstallerOptions(sourceDir string) (installer.Options, error) {
	env, err := c.EnvAssignments()
	if err != nil {
		return installer.Options{}, err
	}

	return installer.Options{
		Target: installer.Target{
			InstallDir:  c.Path,
			ServiceName: c.ServiceName,
			User:        c.User,
			Group:       c.Group,
		},
		SourceDir:      sourceDir,
		Marker:         c.Marker,
		Entry:          c.Entry,
		EntryArgs:      c.EntryArgs,
		Requirements:   c.Requirements,
		EnvTemplates:   c.EnvTemplates,
		EnvOverrides:   env,
		Description:    c.Description,
		UnitDir:        c.UnitDir,
		RestartSec:     c.RestartSec,
		SettleDelay:    c.SettleDelay,
		AssumeYes:      c.AssumeYes,
		SkipUpgrade:    c.SkipUpgrade,
		BestEffortCopy: c.BestEffortCopy,
	}, nil
}
