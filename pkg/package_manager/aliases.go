package packagemanager

import (
	"context"
	_ "embed"

	"github.com/goccy/go-yaml"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	osinfo "github.com/xuibot/botctl/pkg/os_info"
)

//go:embed aliases.yaml
var aliasesYAML []byte

type aliasesConfig struct {
	Aliases []aliasEntry `yaml:"aliases"`
}

type aliasEntry struct {
	Distribution string              `yaml:"distribution"`
	Codename     string              `yaml:"codename"`
	Packages     map[string][]string `yaml:"packages"`
}

type packageAliases map[string][]string

func loadAliases(osInfo osinfo.Info) (packageAliases, error) {
	var cfg aliasesConfig
	if err := yaml.Unmarshal(aliasesYAML, &cfg); err != nil {
		return nil, errors.WithMessage(err, "failed to unmarshal package aliases")
	}

	return resolveAliases(cfg, osInfo), nil
}

func resolveAliases(cfg aliasesConfig, osInfo osinfo.Info) packageAliases {
	result := make(packageAliases)

	apply := func(match func(e aliasEntry) bool) {
		for _, e := range cfg.Aliases {
			if !match(e) {
				continue
			}
			for name, replacement := range e.Packages {
				result[name] = replacement
			}
		}
	}

	apply(func(e aliasEntry) bool {
		return e.Codename == "" && e.Distribution != osInfo.Distribution &&
			lo.Contains(osInfo.DistributionLike, e.Distribution)
	})
	apply(func(e aliasEntry) bool {
		return e.Codename == "" && e.Distribution == osInfo.Distribution
	})
	apply(func(e aliasEntry) bool {
		return e.Codename != "" && e.Codename == osInfo.DistributionCodename &&
			osInfo.IsLike(e.Distribution)
	})

	return result
}

func (a packageAliases) replace(packs []string) []string {
	replaced := make([]string, 0, len(packs))

	for _, pack := range packs {
		if replacement, ok := a[pack]; ok {
			replaced = append(replaced, replacement...)

			continue
		}
		replaced = append(replaced, pack)
	}

	return lo.Uniq(replaced)
}

// aliased resolves logical package names before delegating.
type aliased struct {
	underlined PackageManager
	aliases    packageAliases
}

func newAliased(underlined PackageManager, aliases packageAliases) *aliased {
	return &aliased{
		underlined: underlined,
		aliases:    aliases,
	}
}

func (a *aliased) CheckForUpdates(ctx context.Context) error {
	return a.underlined.CheckForUpdates(ctx)
}

func (a *aliased) Upgrade(ctx context.Context) error {
	return a.underlined.Upgrade(ctx)
}

func (a *aliased) Install(ctx context.Context, packs ...string) error {
	packs = a.aliases.replace(packs)
	if len(packs) == 0 {
		return nil
	}

	return a.underlined.Install(ctx, packs...)
}
