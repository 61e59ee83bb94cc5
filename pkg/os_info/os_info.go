package osinfo

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/matishsiao/goInfo"
	"github.com/pkg/errors"
)

const (
	etcOsRelease  = "/etc/os-release"
	etcLsbRelease = "/etc/lsb-release"
)

type Info struct {
	Kernel               string
	Core                 string
	Distribution         string
	DistributionLike     []string
	DistributionVersion  string
	DistributionCodename string
	Platform             string
	OS                   string
	Hostname             string
	CPUs                 int
}

func (i Info) String() string {
	b := strings.Builder{}
	b.Grow(256) //nolint:mnd

	b.WriteString("Kernel: ")
	b.WriteString(i.Kernel)
	b.WriteString("\nCore: ")
	b.WriteString(i.Core)
	b.WriteString("\nDistribution: ")
	b.WriteString(i.Distribution)
	b.WriteString("\nDistributionLike: ")
	b.WriteString(strings.Join(i.DistributionLike, " "))
	b.WriteString("\nDistributionVersion: ")
	b.WriteString(i.DistributionVersion)
	b.WriteString("\nDistributionCodename: ")
	b.WriteString(i.DistributionCodename)
	b.WriteString("\nPlatform: ")
	b.WriteString(i.Platform)
	b.WriteString("\nOS: ")
	b.WriteString(i.OS)
	b.WriteString("\nHostname: ")
	b.WriteString(i.Hostname)
	b.WriteString("\nCPUs: ")
	b.WriteString(strconv.Itoa(i.CPUs))

	return b.String()
}

// IsLike reports whether the distribution is dist or derived from it.
func (i Info) IsLike(dist string) bool {
	if i.Distribution == dist {
		return true
	}

	for _, like := range i.DistributionLike {
		if like == dist {
			return true
		}
	}

	return false
}

func GetOSInfo(_ context.Context) (Info, error) {
	gi, err := goInfo.GetInfo()
	if err != nil {
		return Info{}, errors.WithMessage(err, "failed to get system info")
	}

	result := Info{
		Kernel:   gi.Kernel,
		Core:     gi.Core,
		Platform: normalizePlatform(gi.Platform),
		OS:       gi.OS,
		Hostname: gi.Hostname,
		CPUs:     gi.CPUs,
	}

	if runtime.GOOS != "linux" {
		result.Distribution = strings.ToLower(gi.OS)
		result.DistributionVersion = gi.Core

		return result, nil
	}

	info, err := detectLinuxDist()
	if err != nil {
		return result, err
	}

	result.Distribution = info.Name
	result.DistributionLike = info.Like
	result.DistributionVersion = info.Version
	result.DistributionCodename = info.VersionCodename

	return result, nil
}

func normalizePlatform(platform string) string {
	switch platform {
	case "", "unknown":
		return runtime.GOARCH
	case "x86_64":
		return "amd64"
	case "i686", "i386":
		return "386"
	case "aarch64":
		return "arm64"
	case "armv7l":
		return "arm"
	}

	return platform
}

type distInfo struct {
	Name            string
	Like            []string
	Version         string
	VersionCodename string
}

func detectLinuxDist() (distInfo, error) {
	if data, err := os.ReadFile(etcOsRelease); err == nil {
		info := parseOSRelease(data)
		if info.Name != "" {
			return info, nil
		}
	}

	if data, err := os.ReadFile(etcLsbRelease); err == nil {
		info := parseLSBRelease(data)
		if info.Name != "" {
			return info, nil
		}
	}

	return distInfo{}, errors.New("unknown operating system")
}

func parseOSRelease(data []byte) distInfo {
	fields := parseKeyValue(data)

	info := distInfo{
		Name:            strings.ToLower(fields["ID"]),
		Version:         fields["VERSION_ID"],
		VersionCodename: strings.ToLower(fields["VERSION_CODENAME"]),
	}

	if like := strings.TrimSpace(fields["ID_LIKE"]); like != "" {
		info.Like = strings.Fields(strings.ToLower(like))
	}

	if info.VersionCodename == "" {
		info.VersionCodename = info.Version
	}

	return info
}

func parseLSBRelease(data []byte) distInfo {
	fields := parseKeyValue(data)

	info := distInfo{
		Name:            strings.ToLower(strings.ReplaceAll(fields["DISTRIB_ID"], " ", "")),
		Version:         fields["DISTRIB_RELEASE"],
		VersionCodename: strings.ToLower(fields["DISTRIB_CODENAME"]),
	}

	if info.VersionCodename == "" {
		info.VersionCodename = info.Version
	}

	return info
}

func parseKeyValue(data []byte) map[string]string {
	result := make(map[string]string)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		result[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"'`)
	}

	return result
}
