package installer

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuibot/botctl/pkg/envfile"
	"github.com/xuibot/botctl/pkg/utils"
)

const installDirPerm = 0o755

// Directories never copied from the project checkout.
var skippedSourceDirs = map[string]struct{}{
	".git":        {},
	".venv":       {},
	"venv":        {},
	"__pycache__": {},
}

func (i *Installer) runDirectoryProvision(ctx context.Context) Result {
	dir := i.opts.Target.InstallDir

	info, err := os.Stat(dir)
	existed := err == nil
	switch {
	case existed && !info.IsDir():
		return failed(NewFilesystemError(dir, errors.New("not a directory")))
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return failed(NewFilesystemError(dir, err))
	}

	if !existed {
		if err = i.deps.FS.MkdirAll(ctx, dir, installDirPerm); err != nil {
			return failed(NewFilesystemError(dir, errors.WithMessage(err, "failed to create directory")))
		}
	}

	if err = i.deps.FS.Chown(ctx, dir, i.identity); err != nil {
		return failed(NewFilesystemError(dir, errors.WithMessage(err, "failed to change owner")))
	}

	if !i.deps.IsWritableBy(dir, i.identity.UID) {
		return failed(NewFilesystemError(dir, errors.Errorf("directory is not writable by %s", i.identity.UserName)))
	}

	if existed {
		return skipped(fmt.Sprintf("%s already exists, owner verified", dir))
	}

	return success(fmt.Sprintf("Created %s owned by %s:%s", dir, i.identity.UserName, i.identity.GroupName))
}

func (i *Installer) planSourceCopy(ctx context.Context) error {
	src, err := filepath.Abs(i.opts.SourceDir)
	if err != nil {
		return errors.WithMessage(err, "failed to resolve source directory")
	}
	i.sourceDir = src

	if src == i.opts.Target.InstallDir {
		i.copyMode = copyInPlace

		return nil
	}

	if utils.IsFileExists(filepath.Join(src, i.opts.Marker)) {
		i.copyMode = copyProject

		return nil
	}

	_, _ = fmt.Fprintf(i.out, "%s not found in %s, project files can't be copied.\n", i.opts.Marker, src)

	ok, err := i.confirm(ctx, "Continue without copying project files?")
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserAborted
	}
	i.copyMode = copyNothing

	return nil
}

func (i *Installer) runSourceCopy(_ context.Context) Result {
	switch i.copyMode {
	case copyInPlace:
		return skipped("source directory is the install directory")
	case copyNothing:
		return skipped(i.opts.Marker + " not found, project files were not copied")
	case copyUndecided:
		return failed(errors.New("source copy was not planned"))
	case copyProject:
	}

	dst := i.opts.Target.InstallDir
	targetHasEnv := utils.IsFileExists(i.opts.Target.EnvFile())

	var warnings []string
	err := utils.CopyTree(i.sourceDir, dst, utils.CopyTreeOptions{
		Skip: func(rel string, info os.FileInfo) bool {
			if filepath.Join(i.sourceDir, rel) == dst {
				return true
			}
			if info.IsDir() {
				_, skip := skippedSourceDirs[filepath.Base(rel)]

				return skip
			}

			return rel == envfile.DefaultName && targetHasEnv
		},
		OnError: func(src, _ string, err error) error {
			if !i.opts.BestEffortCopy {
				return errors.WithMessagef(err, "failed to copy %s", src)
			}

			log.Println(errors.WithMessagef(err, "failed to copy %s", src))
			warnings = append(warnings, fmt.Sprintf("%s was not copied: %s", src, err))

			return nil
		},
	})
	if err != nil {
		return failed(NewFilesystemError(dst, err))
	}

	return success(fmt.Sprintf("Copied project files from %s", i.sourceDir), warnings...)
}

func (i *Installer) runConfigBootstrap(ctx context.Context) Result {
	path := i.opts.Target.EnvFile()

	if utils.IsFileExists(path) {
		var warnings []string
		if len(i.opts.EnvOverrides) > 0 {
			warnings = append(warnings, "configuration exists, --env values were not applied")
		}

		return skipped("keeping existing configuration "+path, append(warnings, i.configProblems(path)...)...)
	}

	var warnings []string
	tmpl, err := envfile.FindTemplate(i.opts.Target.InstallDir, i.opts.EnvTemplates...)
	if err != nil {
		if !errors.Is(err, envfile.ErrTemplateNotFound) {
			return failed(NewFilesystemError(path, err))
		}
		warnings = append(warnings, "no configuration template found, created a blank one")
	}

	created, err := envfile.Bootstrap(tmpl, path)
	if err != nil {
		return failed(NewFilesystemError(path, err))
	}
	if !created {
		return skipped("keeping existing configuration " + path)
	}

	if err = envfile.Set(ctx, path, i.opts.EnvOverrides); err != nil {
		return failed(NewFilesystemError(path, errors.WithMessage(err, "failed to apply configuration values")))
	}

	// Values passed on the command line may already make the file complete.
	needsEdit := len(i.opts.EnvOverrides) == 0 || len(i.configProblems(path)) > 0
	if !i.opts.NonInteractive && needsEdit {
		_, _ = fmt.Fprintln(i.out)
		_, _ = fmt.Fprintln(i.out, "Configuration file created:", path)
		_, _ = fmt.Fprintln(i.out, "Set at least:", strings.Join(envfile.RequiredKeys, ", "))
		_, _ = fmt.Fprintln(i.out, "Edit it in another terminal, e.g.: nano", path)

		if err = i.deps.Prompter.Pause(ctx, "Press Enter when done..."); err != nil {
			return failed(errors.WithMessage(err, "failed to wait for configuration edit"))
		}
	}

	return success("Created "+path, append(warnings, i.configProblems(path)...)...)
}

func (i *Installer) configProblems(path string) []string {
	values, err := envfile.Load(path)
	if err != nil {
		return []string{fmt.Sprintf("failed to read %s: %s", path, err)}
	}

	return values.Problems()
}
