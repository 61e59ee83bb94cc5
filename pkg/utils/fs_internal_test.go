package utils

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envConfig = `TELEGRAM_BOT_TOKEN=
XUI_URL=https://panel.example.com
XUI_USERNAME=admin
`

func Test_findLineAndReplace(t *testing.T) {
	r := strings.NewReader(envConfig)
	w := bytes.NewBuffer([]byte{})

	err := findLineAndReplaceOrAdd(context.Background(), r, w, []LineReplacement{
		{Prefix: "TELEGRAM_BOT_TOKEN=", Line: "TELEGRAM_BOT_TOKEN=123:abc"},
		{Prefix: "XUI_USERNAME=", Line: "XUI_USERNAME=root"},
	}, false)

	require.NoError(t, err)
	assert.Equal(
		t,
		"TELEGRAM_BOT_TOKEN=123:abc\nXUI_URL=https://panel.example.com\nXUI_USERNAME=root\n",
		w.String(),
	)
}

var envConfigWithSpaces = `TELEGRAM_BOT_TOKEN=
    XUI_URL=https://panel.example.com
	XUI_USERNAME=admin
`

func Test_findLineAndReplace_withSpaces(t *testing.T) {
	r := strings.NewReader(envConfigWithSpaces)
	w := bytes.NewBuffer([]byte{})

	err := findLineAndReplaceOrAdd(context.Background(), r, w, []LineReplacement{
		{Prefix: "XUI_URL=", Line: "XUI_URL=https://other.example.com"},
		{Prefix: "XUI_USERNAME=", Line: "XUI_USERNAME=root"},
	}, false)

	require.NoError(t, err)
	assert.Equal(
		t,
		"TELEGRAM_BOT_TOKEN=\n    XUI_URL=https://other.example.com\n	XUI_USERNAME=root\n",
		w.String(),
	)
}

func Test_findLineAndReplace_addMissingInOrder(t *testing.T) {
	r := strings.NewReader(envConfig)
	w := bytes.NewBuffer([]byte{})

	err := findLineAndReplaceOrAdd(context.Background(), r, w, []LineReplacement{
		{Prefix: "WEB_APP_URL=", Line: "WEB_APP_URL=https://app.example.com"},
		{Prefix: "XUI_URL=", Line: "XUI_URL=https://other.example.com"},
		{Prefix: "DEFAULT_TOTAL_GB=", Line: "DEFAULT_TOTAL_GB=50"},
	}, true)

	require.NoError(t, err)
	assert.Equal(
		t,
		"TELEGRAM_BOT_TOKEN=\nXUI_URL=https://other.example.com\nXUI_USERNAME=admin\n"+
			"WEB_APP_URL=https://app.example.com\nDEFAULT_TOTAL_GB=50\n",
		w.String(),
	)
}

func Test_FindLineAndReplaceOrAdd_keepsFileMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(envConfig), 0600))

	err := FindLineAndReplaceOrAdd(context.Background(), path, []LineReplacement{
		{Prefix: "TELEGRAM_BOT_TOKEN=", Line: "TELEGRAM_BOT_TOKEN=t"},
	})

	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "TELEGRAM_BOT_TOKEN=t\n"))
}

func Test_CopyTree(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")

	require.NoError(t, os.WriteFile(filepath.Join(src, "bot.py"), []byte("print()"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "venv", "bin"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "venv", "bin", "python"), []byte(""), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "handlers"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "handlers", "commands.py"), []byte(""), 0644))

	err := CopyTree(src, dst, CopyTreeOptions{
		Skip: func(rel string, _ os.FileInfo) bool {
			return rel == "venv"
		},
	})

	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dst, "bot.py"))
	assert.FileExists(t, filepath.Join(dst, "handlers", "commands.py"))
	assert.NoDirExists(t, filepath.Join(dst, "venv"))
}

func Test_CopyFile_doesNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(src, []byte("new"), 0644))
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0644))

	err := CopyFile(src, dst, 0600)

	require.ErrorIs(t, err, os.ErrExist)
	b, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "old", string(b))
}
