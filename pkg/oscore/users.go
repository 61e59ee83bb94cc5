package oscore

import (
	"os/user"
	"strconv"

	"github.com/pkg/errors"
)

const superuserUID = "0"

// Identity is the resolved account a service runs as.
type Identity struct {
	UserName  string
	GroupName string
	UID       int
	GID       int
	HomeDir   string
}

func IsSuperuser(u *user.User) bool {
	return u != nil && u.Uid == superuserUID
}

// LookupIdentity resolves user and group names to numeric ids.
// An empty group name selects the user's primary group.
func LookupIdentity(userName, groupName string) (Identity, error) {
	u, err := user.Lookup(userName)
	if err != nil {
		return Identity{}, errors.WithMessagef(err, "failed to lookup user %s", userName)
	}

	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return Identity{}, errors.WithMessage(err, "failed to convert uid to int")
	}

	var g *user.Group
	if groupName == "" {
		g, err = user.LookupGroupId(u.Gid)
	} else {
		g, err = user.LookupGroup(groupName)
	}
	if err != nil {
		return Identity{}, errors.WithMessage(err, "failed to lookup group")
	}

	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return Identity{}, errors.WithMessage(err, "failed to convert gid to int")
	}

	return Identity{
		UserName:  u.Username,
		GroupName: g.Name,
		UID:       uid,
		GID:       gid,
		HomeDir:   u.HomeDir,
	}, nil
}
