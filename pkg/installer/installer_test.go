package installer_test

import (
	"bytes"
	"context"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuibot/botctl/pkg/envfile"
	"github.com/xuibot/botctl/pkg/installer"
	packagemanager "github.com/xuibot/botctl/pkg/package_manager"
	"github.com/xuibot/botctl/pkg/oscore"
	"github.com/xuibot/botctl/pkg/pyenv"
	"github.com/xuibot/botctl/pkg/runhelper"
	"github.com/xuibot/botctl/pkg/service"
	"github.com/xuibot/botctl/pkg/unit"
)

const envTemplate = "TELEGRAM_BOT_TOKEN=your_bot_token_here\nXUI_URL=http://localhost:54321\n"

type fakePackages struct {
	calls      []string
	installErr error
}

func (f *fakePackages) CheckForUpdates(_ context.Context) error {
	f.calls = append(f.calls, "update")

	return nil
}

func (f *fakePackages) Upgrade(_ context.Context) error {
	f.calls = append(f.calls, "upgrade")

	return nil
}

func (f *fakePackages) Install(_ context.Context, packs ...string) error {
	f.calls = append(f.calls, "install "+strings.Join(packs, " "))

	return f.installErr
}

type fakeServices struct {
	calls      []string
	state      string
	startState string
}

func (f *fakeServices) record(call string) error {
	f.calls = append(f.calls, call)

	return nil
}

func (f *fakeServices) Start(_ context.Context, name string) error {
	f.state = f.startState

	return f.record("start " + name)
}

func (f *fakeServices) Stop(_ context.Context, name string) error {
	f.state = "inactive"

	return f.record("stop " + name)
}

func (f *fakeServices) Restart(_ context.Context, name string) error {
	f.state = f.startState

	return f.record("restart " + name)
}

func (f *fakeServices) Status(_ context.Context, _ string) error {
	return nil
}

func (f *fakeServices) DaemonReload(_ context.Context) error {
	return f.record("daemon-reload")
}

func (f *fakeServices) Enable(_ context.Context, name string) error {
	return f.record("enable " + name)
}

func (f *fakeServices) Disable(_ context.Context, name string) error {
	return f.record("disable " + name)
}

func (f *fakeServices) ActiveState(_ context.Context, _ string) (string, error) {
	if f.state == "" {
		return "inactive", nil
	}

	return f.state, nil
}

func (f *fakeServices) MainPID(_ context.Context, _ string) (int32, error) {
	return 0, nil
}

type fakeRuntime struct {
	dir       string
	installed bool
	manifests []string
}

func (f *fakeRuntime) Interpreter() string {
	return filepath.Join(f.dir, "bin", "python")
}

func (f *fakeRuntime) Probe(_ context.Context) pyenv.Capabilities {
	if !f.installed {
		return pyenv.Capabilities{}
	}

	return pyenv.Capabilities{Interpreter: true, Version: "v3.11.2", Venv: true, Pip: true}
}

func (f *fakeRuntime) CheckVersion(_ context.Context, _ string) (string, error) {
	return "v3.11.2", nil
}

func (f *fakeRuntime) Create(_ context.Context) (bool, error) {
	if _, err := os.Stat(f.Interpreter()); err == nil {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(f.Interpreter()), 0o755); err != nil {
		return false, err
	}

	return true, os.WriteFile(f.Interpreter(), nil, 0o755)
}

func (f *fakeRuntime) UpgradePip(_ context.Context) error {
	return nil
}

func (f *fakeRuntime) InstallRequirements(_ context.Context, manifest string) error {
	if _, err := os.Stat(manifest); err != nil {
		return err
	}
	f.manifests = append(f.manifests, manifest)

	return nil
}

type fakeFS struct {
	chowned []string
	written []string
}

func (f *fakeFS) MkdirAll(_ context.Context, path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (f *fakeFS) Chown(_ context.Context, path string, _ oscore.Identity) error {
	f.chowned = append(f.chowned, path)

	return nil
}

func (f *fakeFS) WriteFile(_ context.Context, path string, data []byte, perm os.FileMode) error {
	f.written = append(f.written, path)

	return os.WriteFile(path, data, perm)
}

type fakePrompter struct {
	answer    bool
	questions []string
	pauses    int
}

func (f *fakePrompter) Confirm(_ context.Context, question string, _ bool) (bool, error) {
	f.questions = append(f.questions, question)

	return f.answer, nil
}

func (f *fakePrompter) Pause(_ context.Context, _ string) error {
	f.pauses++

	return nil
}

type fixture struct {
	root       string
	sourceDir  string
	installDir string
	unitDir    string
	uid        string

	packages *fakePackages
	services *fakeServices
	runtime  *fakeRuntime
	fs       *fakeFS
	prompter *fakePrompter
	slept    []time.Duration
	out      bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	root := t.TempDir()
	f := &fixture{
		root:       root,
		sourceDir:  filepath.Join(root, "src"),
		installDir: filepath.Join(root, "opt", "telegram-vpn-bot"),
		unitDir:    filepath.Join(root, "systemd"),
		uid:        "1000",
		packages:   &fakePackages{},
		services:   &fakeServices{startState: service.StateActive},
		fs:         &fakeFS{},
		prompter:   &fakePrompter{},
	}
	f.runtime = &fakeRuntime{dir: filepath.Join(f.installDir, "venv")}

	require.NoError(t, os.MkdirAll(f.sourceDir, 0o755))
	require.NoError(t, os.MkdirAll(f.unitDir, 0o755))

	f.writeSource(t, "bot.py", "print('bot')\n")
	f.writeSource(t, "requirements.txt", "python-telegram-bot\n")
	f.writeSource(t, ".env.example", envTemplate)

	return f
}

func (f *fixture) writeSource(t *testing.T, name, content string) {
	t.Helper()

	p := filepath.Join(f.sourceDir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func (f *fixture) options() installer.Options {
	return installer.Options{
		Target: installer.Target{
			InstallDir:  f.installDir,
			ServiceName: "telegram-vpn-bot",
		},
		SourceDir:   f.sourceDir,
		UnitDir:     f.unitDir,
		SettleDelay: time.Second,
	}
}

func (f *fixture) run(t *testing.T, opts installer.Options) installer.Report {
	t.Helper()

	deps := installer.Dependencies{
		LoadPackages: func(_ context.Context) (packagemanager.PackageManager, error) {
			return f.packages, nil
		},
		LoadServices: func(_ context.Context) (service.Manager, error) {
			return f.services, nil
		},
		Runtime:  f.runtime,
		FS:       f.fs,
		Prompter: f.prompter,
		CurrentUser: func() (*user.User, error) {
			return &user.User{Username: "bot", Uid: f.uid, Gid: "1000"}, nil
		},
		LookupIdentity: func(userName, _ string) (oscore.Identity, error) {
			if userName == "root" {
				return oscore.Identity{UserName: "root", GroupName: "root"}, nil
			}

			return oscore.Identity{UserName: userName, GroupName: userName, UID: 1000, GID: 1000}, nil
		},
		DetectInit: func(_ context.Context) (string, error) {
			return runhelper.InitSystemd, nil
		},
		SudoAvailable: func() bool { return true },
		IsWritableBy:  func(_ string, _ int) bool { return true },
		Sleep: func(_ context.Context, d time.Duration) error {
			f.slept = append(f.slept, d)

			return nil
		},
	}

	inst, err := installer.New(opts, deps, &f.out)
	require.NoError(t, err)

	return inst.Run(context.Background(), nil)
}

func resultOf(t *testing.T, report installer.Report, step string) installer.Result {
	t.Helper()

	for _, r := range report.Results {
		if r.Step == step {
			return r
		}
	}
	require.Failf(t, "step not found", "step %s has no result", step)

	return installer.Result{}
}

func TestInstall_superuserIsRejectedBeforeAnyMutation(t *testing.T) {
	f := newFixture(t)
	f.uid = "0"

	report := f.run(t, f.options())

	var privilegeErr *installer.PrivilegeError
	require.ErrorAs(t, report.Err, &privilegeErr)
	require.Len(t, report.Results, 1)
	assert.Equal(t, installer.StepPreflight, report.Results[0].Step)
	assert.Equal(t, installer.StatusFailed, report.Results[0].Status)
	assert.NoDirExists(t, f.installDir)
	assert.Empty(t, f.packages.calls)
	assert.Empty(t, f.services.calls)
	assert.Empty(t, f.prompter.questions)
}

func TestInstall_serviceUserMustNotBeRoot(t *testing.T) {
	f := newFixture(t)
	opts := f.options()
	opts.Target.User = "root"

	report := f.run(t, opts)

	var privilegeErr *installer.PrivilegeError
	require.ErrorAs(t, report.Err, &privilegeErr)
	assert.NoDirExists(t, f.installDir)
}

func TestInstall_freshHost(t *testing.T) {
	f := newFixture(t)
	f.writeSource(t, "venv/pyvenv.cfg", "home = /usr/bin\n")
	f.writeSource(t, ".git/HEAD", "ref: refs/heads/main\n")
	f.writeSource(t, "handlers/__pycache__/commands.cpython-311.pyc", "")
	f.writeSource(t, "handlers/commands.py", "")

	report := f.run(t, f.options())

	require.NoError(t, report.Err)
	assert.True(t, report.Succeeded())
	assert.Len(t, report.Completed(), 9)
	for _, r := range report.Results {
		assert.Equal(t, installer.StatusSuccess, r.Status, r.Step)
	}

	assert.Equal(t, []string{
		"update",
		"upgrade",
		"install python3 python3-venv python3-pip",
	}, f.packages.calls)
	assert.Equal(t, []string{f.installDir}, f.fs.chowned)

	assert.FileExists(t, filepath.Join(f.installDir, "bot.py"))
	assert.FileExists(t, filepath.Join(f.installDir, "handlers", "commands.py"))
	assert.NoDirExists(t, filepath.Join(f.installDir, ".git"))
	assert.NoDirExists(t, filepath.Join(f.installDir, "handlers", "__pycache__"))
	assert.NoFileExists(t, filepath.Join(f.installDir, "venv", "pyvenv.cfg"))
	assert.Equal(t, []string{filepath.Join(f.installDir, "requirements.txt")}, f.runtime.manifests)

	envBytes, err := os.ReadFile(filepath.Join(f.installDir, ".env"))
	require.NoError(t, err)
	assert.Equal(t, envTemplate, string(envBytes))
	assert.Equal(t, 1, f.prompter.pauses)
	assert.Contains(t, resultOf(t, report, installer.StepConfigBootstrap).Warnings, "TELEGRAM_BOT_TOKEN is not set")

	unitPath := filepath.Join(f.unitDir, "telegram-vpn-bot.service")
	unitBytes, err := os.ReadFile(unitPath)
	require.NoError(t, err)
	assert.Contains(t, string(unitBytes), "WorkingDirectory="+f.installDir+"\n")
	assert.Contains(t, string(unitBytes),
		"ExecStart="+filepath.Join(f.installDir, "venv", "bin", "python")+" "+filepath.Join(f.installDir, "bot.py")+"\n")
	assert.Contains(t, string(unitBytes), "User=bot\nGroup=bot\n")

	assert.Equal(t, []string{
		"daemon-reload",
		"enable telegram-vpn-bot",
		"start telegram-vpn-bot",
	}, f.services.calls)
	assert.Equal(t, []time.Duration{time.Second}, f.slept)
}

func TestInstall_declinedWithoutMarker(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.Remove(filepath.Join(f.sourceDir, "bot.py")))
	f.prompter.answer = false

	report := f.run(t, f.options())

	require.ErrorIs(t, report.Err, installer.ErrUserAborted)
	assert.Len(t, f.prompter.questions, 1)
	assert.NoDirExists(t, f.installDir)
	assert.Empty(t, f.packages.calls)
	assert.Equal(t, installer.StepSourceCopy, report.Results[len(report.Results)-1].Step)
}

func TestInstall_nonInteractiveWithoutMarkerAborts(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.Remove(filepath.Join(f.sourceDir, "bot.py")))
	opts := f.options()
	opts.NonInteractive = true

	report := f.run(t, opts)

	require.ErrorIs(t, report.Err, installer.ErrUserAborted)
	assert.Empty(t, f.prompter.questions)
	assert.NoDirExists(t, f.installDir)
}

func TestInstall_existingConfigIsKept(t *testing.T) {
	f := newFixture(t)
	const edited = "TELEGRAM_BOT_TOKEN=123:abc\nXUI_URL=http://10.0.0.1:2053\n"
	require.NoError(t, os.MkdirAll(f.installDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.installDir, ".env"), []byte(edited), 0o600))
	f.writeSource(t, ".env", "TELEGRAM_BOT_TOKEN=from-checkout\n")

	report := f.run(t, f.options())

	require.NoError(t, report.Err)
	res := resultOf(t, report, installer.StepConfigBootstrap)
	assert.Equal(t, installer.StatusSkipped, res.Status)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, installer.StatusSkipped, resultOf(t, report, installer.StepDirectoryProvision).Status)
	assert.Zero(t, f.prompter.pauses)

	b, err := os.ReadFile(filepath.Join(f.installDir, ".env"))
	require.NoError(t, err)
	assert.Equal(t, edited, string(b))
}

func TestInstall_secondRunDoesNotCopyTemplateAgain(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.run(t, f.options()).Err)
	require.Equal(t, 1, f.prompter.pauses)

	envPath := filepath.Join(f.installDir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("TELEGRAM_BOT_TOKEN=1:a\nXUI_URL=http://x\n"), 0o600))

	report := f.run(t, f.options())

	require.NoError(t, report.Err)
	assert.Equal(t, 1, f.prompter.pauses)
	b, err := os.ReadFile(envPath)
	require.NoError(t, err)
	assert.Equal(t, "TELEGRAM_BOT_TOKEN=1:a\nXUI_URL=http://x\n", string(b))
}

func TestInstall_envOverridesSkipThePause(t *testing.T) {
	f := newFixture(t)
	opts := f.options()
	opts.EnvOverrides = []envfile.Assignment{
		{Key: "TELEGRAM_BOT_TOKEN", Value: "123:abc"},
	}

	report := f.run(t, opts)

	require.NoError(t, report.Err)
	assert.Zero(t, f.prompter.pauses)
	b, err := os.ReadFile(filepath.Join(f.installDir, ".env"))
	require.NoError(t, err)
	assert.Equal(t, "TELEGRAM_BOT_TOKEN=123:abc\nXUI_URL=http://localhost:54321\n", string(b))
}

func TestInstall_registrationOverwritesExistingUnit(t *testing.T) {
	f := newFixture(t)
	unitPath := filepath.Join(f.unitDir, "telegram-vpn-bot.service")
	require.NoError(t, os.WriteFile(unitPath, []byte("[Service]\nExecStart=/bin/false\n"), 0o644))
	f.services.state = service.StateActive

	report := f.run(t, f.options())

	require.NoError(t, report.Err)
	b, err := os.ReadFile(unitPath)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "/bin/false")
	assert.Contains(t, f.services.calls, "restart telegram-vpn-bot")
	assert.Contains(t, f.services.calls, "daemon-reload")

	// Unchanged unit: no write, no reload.
	f.fs.written = nil
	f.services.calls = nil

	report = f.run(t, f.options())

	require.NoError(t, report.Err)
	assert.Empty(t, f.fs.written)
	assert.NotContains(t, f.services.calls, "daemon-reload")
}

func TestInstall_unitMatchesRenderedSpec(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.run(t, f.options()).Err)

	want, err := unit.Render(unit.Spec{
		Name:             "telegram-vpn-bot",
		Description:      installer.DefaultDescription,
		User:             "bot",
		Group:            "bot",
		WorkingDirectory: f.installDir,
		ExecCommand: []string{
			filepath.Join(f.installDir, "venv", "bin", "python"),
			filepath.Join(f.installDir, "bot.py"),
		},
		RestartPolicy:   unit.RestartAlways,
		RestartSec:      unit.DefaultRestartSec,
		EnvironmentFile: filepath.Join(f.installDir, ".env"),
		Environment:     map[string]string{"PYTHONUNBUFFERED": "1"},
	})
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(f.unitDir, "telegram-vpn-bot.service"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestInstall_healthCheckFailure(t *testing.T) {
	f := newFixture(t)
	f.services.startState = "failed"

	report := f.run(t, f.options())

	var startErr *installer.ServiceStartError
	require.ErrorAs(t, report.Err, &startErr)
	assert.Equal(t, "failed", startErr.State)
	assert.Contains(t, startErr.Hints(), "Check the logs: journalctl -u telegram-vpn-bot -f")
	assert.Equal(t, installer.StatusFailed, resultOf(t, report, installer.StepHealthCheck).Status)
}

func TestInstall_packageFailureStopsTheRun(t *testing.T) {
	f := newFixture(t)
	f.packages.installErr = errors.New("E: Unable to locate package python3-venv")

	report := f.run(t, f.options())

	var packageErr *installer.PackageError
	require.ErrorAs(t, report.Err, &packageErr)
	assert.Equal(t, installer.StepDependencyInstall, report.Results[len(report.Results)-1].Step)
	assert.NoDirExists(t, f.installDir)
	assert.Empty(t, f.services.calls)
}

func TestInstall_pythonAlreadyInstalled(t *testing.T) {
	f := newFixture(t)
	f.runtime.installed = true
	opts := f.options()
	opts.SkipUpgrade = true

	report := f.run(t, opts)

	require.NoError(t, report.Err)
	assert.Equal(t, []string{"update"}, f.packages.calls)
	assert.Equal(t, installer.StatusSkipped, resultOf(t, report, installer.StepDependencyInstall).Status)
}

func TestInstall_resumeSkipsCompletedSteps(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.run(t, f.options()).Err)

	f.packages.calls = nil
	f.services.calls = nil
	opts := f.options()
	opts.Completed = []string{
		installer.StepPreflight,
		installer.StepSystemUpdate,
		installer.StepDependencyInstall,
		installer.StepDirectoryProvision,
		installer.StepSourceCopy,
		installer.StepEnvironmentSetup,
		installer.StepConfigBootstrap,
		installer.StepServiceRegistration,
	}

	report := f.run(t, opts)

	require.NoError(t, report.Err)
	assert.Empty(t, f.packages.calls)
	assert.Equal(t, installer.StatusSkipped, resultOf(t, report, installer.StepSystemUpdate).Status)
	assert.Equal(t, installer.StatusSuccess, resultOf(t, report, installer.StepPreflight).Status)
	assert.Equal(t, installer.StatusSuccess, resultOf(t, report, installer.StepHealthCheck).Status)
	assert.Contains(t, f.services.calls, "enable telegram-vpn-bot")
}

func TestInstall_missingManifestFailsBeforeMutation(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.Remove(filepath.Join(f.sourceDir, "requirements.txt")))

	report := f.run(t, f.options())

	var depErr *installer.DependencyError
	require.ErrorAs(t, report.Err, &depErr)
	assert.NoDirExists(t, f.installDir)
}

func TestNew_invalidTarget(t *testing.T) {
	_, err := installer.New(installer.Options{
		Target: installer.Target{InstallDir: "relative/dir"},
	}, installer.Dependencies{}, &bytes.Buffer{})

	require.Error(t, err)
}
