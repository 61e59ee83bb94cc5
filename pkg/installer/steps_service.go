package installer

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"

	"github.com/pkg/errors"
	"github.com/xuibot/botctl/pkg/service"
	"github.com/xuibot/botctl/pkg/unit"
)

const unitFilePerm = 0o644

func (i *Installer) runServiceRegistration(ctx context.Context) Result {
	name := i.opts.Target.ServiceName
	spec := i.UnitSpec()

	data, err := unit.Render(spec)
	if err != nil {
		return failed(NewServiceError(name, errors.WithMessage(err, "failed to render unit")))
	}

	path := spec.Path(i.opts.UnitDir)
	current, err := os.ReadFile(path)
	changed := err != nil || !bytes.Equal(current, data)

	if changed {
		if err = i.deps.FS.WriteFile(ctx, path, data, unitFilePerm); err != nil {
			return failed(NewServiceError(name, errors.WithMessage(err, "failed to write unit file")))
		}
		log.Println("Unit file written:", path)

		if err = i.services.DaemonReload(ctx); err != nil {
			return failed(NewServiceError(name, errors.WithMessage(err, "failed to reload service manager")))
		}
	}

	if err = i.services.Enable(ctx, name); err != nil {
		return failed(NewServiceError(name, errors.WithMessage(err, "failed to enable service")))
	}

	state, err := i.services.ActiveState(ctx, name)
	if err != nil {
		log.Println(errors.WithMessage(err, "failed to get service state"))
	}

	action := "started"
	if state == service.StateActive {
		action = "restarted"
		err = service.Restart(ctx, i.services, name)
	} else {
		err = i.services.Start(ctx, name)
	}
	if err != nil {
		return failed(NewServiceError(name, errors.WithMessage(err, "failed to start service")))
	}

	if changed {
		return success(fmt.Sprintf("Unit %s written, service %s", path, action))
	}

	return success(fmt.Sprintf("Unit %s unchanged, service %s", path, action))
}

func (i *Installer) runHealthCheck(ctx context.Context) Result {
	name := i.opts.Target.ServiceName

	if err := i.deps.Sleep(ctx, i.opts.SettleDelay); err != nil {
		return failed(err)
	}

	state, err := i.services.ActiveState(ctx, name)
	if err != nil {
		log.Println(errors.WithMessage(err, "failed to get service state"))
		state = "unknown"
	}

	if state != service.StateActive {
		return failed(NewServiceStartError(name, state, i.opts.Target.EnvFile()))
	}

	return success(fmt.Sprintf("Service %s is %s", name, state))
}
