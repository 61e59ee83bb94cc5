package installer

import (
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/xuibot/botctl/pkg/envfile"
	"github.com/xuibot/botctl/pkg/pyenv"
	"github.com/xuibot/botctl/pkg/unit"
)

const (
	DefaultInstallDir   = "/opt/telegram-vpn-bot"
	DefaultServiceName  = "telegram-vpn-bot"
	DefaultMarker       = "bot.py"
	DefaultEntry        = "bot.py"
	DefaultRequirements = "requirements.txt"
	DefaultSettleDelay  = 3 * time.Second
	DefaultDescription  = "Telegram VPN Bot"
)

// Target is where and as whom the bot gets installed.
type Target struct {
	InstallDir  string `json:"installDir"`
	ServiceName string `json:"serviceName"`
	User        string `json:"user"`
	Group       string `json:"group,omitempty"`
}

func (t Target) Validate() error {
	if t.InstallDir == "" {
		return errors.New("install directory is empty")
	}
	if !filepath.IsAbs(t.InstallDir) {
		return errors.Errorf("install directory '%s' must be absolute", t.InstallDir)
	}
	if filepath.Clean(t.InstallDir) == "/" {
		return errors.New("install directory can't be the root directory")
	}
	if t.ServiceName == "" {
		return errors.New("service name is empty")
	}

	return nil
}

func (t Target) EnvFile() string {
	return filepath.Join(t.InstallDir, envfile.DefaultName)
}

func (t Target) VenvDir() string {
	return filepath.Join(t.InstallDir, pyenv.DefaultDirName)
}

type Options struct {
	Target Target

	// SourceDir is the project checkout to copy from.
	SourceDir    string
	Marker       string
	Entry        string
	EntryArgs    []string
	Requirements string

	EnvTemplates []string
	EnvOverrides []envfile.Assignment

	Description string
	UnitDir     string
	RestartSec  int
	SettleDelay time.Duration

	AssumeYes      bool
	NonInteractive bool
	SkipUpgrade    bool
	BestEffortCopy bool

	// Completed lists steps finished by a previous run. They are skipped,
	// except for the ones that always run.
	Completed []string
}

func (o Options) withDefaults() Options {
	if o.Target.InstallDir == "" {
		o.Target.InstallDir = DefaultInstallDir
	}
	o.Target.InstallDir = filepath.Clean(o.Target.InstallDir)
	if o.Target.ServiceName == "" {
		o.Target.ServiceName = DefaultServiceName
	}
	if o.SourceDir == "" {
		o.SourceDir = "."
	}
	if o.Marker == "" {
		o.Marker = DefaultMarker
	}
	if o.Entry == "" {
		o.Entry = DefaultEntry
	}
	if o.Requirements == "" {
		o.Requirements = DefaultRequirements
	}
	if o.Description == "" {
		o.Description = DefaultDescription
	}
	if o.UnitDir == "" {
		o.UnitDir = unit.DefaultUnitDir
	}
	if o.RestartSec <= 0 {
		o.RestartSec = unit.DefaultRestartSec
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = DefaultSettleDelay
	}

	return o
}

func (o Options) inInstallDir(p string) string {
	if filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(o.Target.InstallDir, p)
}
