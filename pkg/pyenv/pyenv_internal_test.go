package pyenv

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    string
		wantErr bool
	}{
		{
			name: "full",
			out:  "Python 3.11.2\n",
			want: "v3.11.2",
		},
		{
			name: "release_candidate",
			out:  "Python 3.13.0rc1",
			want: "v3.13.0",
		},
		{
			name: "major_minor",
			out:  "Python 3.8",
			want: "v3.8",
		},
		{
			name:    "garbage",
			out:     "command not found",
			wantErr: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := ParseVersion(test.out)

			if test.wantErr {
				require.Error(t, err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}
}

func TestCompareMinimum(t *testing.T) {
	require.NoError(t, CompareMinimum("v3.11.2", MinimumVersion))
	require.NoError(t, CompareMinimum("v3.8", MinimumVersion))
	require.NoError(t, CompareMinimum("v3.10.0", MinimumVersion))

	err := CompareMinimum("v3.6.9", MinimumVersion)
	var tooOld *PythonTooOldError
	require.ErrorAs(t, err, &tooOld)
	assert.Equal(t, "python 3.6.9 is too old, at least 3.8 is required", err.Error())
}

type fakeRunner struct {
	calls   []string
	outputs map[string]string
	fail    map[string]bool
}

func (f *fakeRunner) run(_ context.Context, _ string, command string, args ...string) (string, error) {
	call := strings.TrimSpace(command + " " + strings.Join(args, " "))
	f.calls = append(f.calls, call)

	for prefix := range f.fail {
		if strings.HasPrefix(call, prefix) {
			return "error: boom\n", errors.New("exit status 1")
		}
	}

	return f.outputs[call], nil
}

func TestEnv_CreateAndInstall(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "venv")
	manifest := filepath.Join(filepath.Dir(dir), "requirements.txt")
	require.NoError(t, os.WriteFile(manifest, []byte("python-telegram-bot\n"), 0o644))

	fake := &fakeRunner{}
	env := &Env{Dir: dir, Python: "python3", run: fake.run}
	ctx := context.Background()

	created, err := env.Create(ctx)
	require.NoError(t, err)
	assert.True(t, created)
	require.NoError(t, env.UpgradePip(ctx))
	require.NoError(t, env.InstallRequirements(ctx, manifest))

	py := filepath.Join(dir, "bin", "python")
	assert.Equal(t, []string{
		"python3 -m venv " + dir,
		py + " -m pip --disable-pip-version-check install --upgrade pip",
		py + " -m pip --disable-pip-version-check install --timeout 120 -r " + manifest,
	}, fake.calls)
}

func TestEnv_Create_existing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "venv")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bin", "python"), nil, 0o755))

	fake := &fakeRunner{}
	env := &Env{Dir: dir, Python: "python3", run: fake.run}

	created, err := env.Create(context.Background())

	require.NoError(t, err)
	assert.False(t, created)
	assert.Empty(t, fake.calls)
}

func TestEnv_InstallRequirements_missingManifest(t *testing.T) {
	env := &Env{Dir: filepath.Join(t.TempDir(), "venv"), run: (&fakeRunner{}).run}

	err := env.InstallRequirements(context.Background(), "/nonexistent/requirements.txt")

	require.ErrorIs(t, err, ErrManifestMissing)
}

func TestEnv_Probe(t *testing.T) {
	fake := &fakeRunner{
		outputs: map[string]string{"python3 --version": "Python 3.9.2\n"},
		fail:    map[string]bool{"python3 -m pip": true},
	}
	env := &Env{Python: "python3", run: fake.run}

	c := env.Probe(context.Background())

	assert.Equal(t, Capabilities{Interpreter: true, Version: "v3.9.2", Venv: true}, c)
	assert.False(t, c.Complete())
}

func TestEnv_CheckVersion(t *testing.T) {
	fake := &fakeRunner{outputs: map[string]string{"python3 --version": "Python 3.7.3\n"}}
	env := &Env{Python: "python3", run: fake.run}

	version, err := env.CheckVersion(context.Background(), MinimumVersion)

	assert.Equal(t, "v3.7.3", version)
	var tooOld *PythonTooOldError
	require.ErrorAs(t, err, &tooOld)
}
