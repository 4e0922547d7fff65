package room

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/BioHazard786/Roomdrop/internal/utils"
)

const (
	codeLength   = 6
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var ErrInvalidInvite = errors.New("invalid invite")

// Invite is a resolved room link.
type Invite struct {
	RoomID string
	// Join is set when the link names an existing room to enter as the
	// answering side.
	Join bool
}

// NewCode returns a fresh six-character room code.
func NewCode() string {
	return utils.RandomString(codeLength, codeAlphabet)
}

// ValidCode reports whether s is a well-formed room code.
func ValidCode(s string) bool {
	if len(s) != codeLength {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune(codeAlphabet, r) {
			return false
		}
	}
	return true
}

// ResolveInvite accepts a bare code or a roomdrop://join/, p2pshare://join/
// or https://<host>/r/ link and returns the room it names.
func ResolveInvite(input string) (Invite, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Invite{}, fmt.Errorf("%w: empty", ErrInvalidInvite)
	}

	code := input
	if strings.Contains(input, "://") {
		u, err := url.Parse(input)
		if err != nil {
			return Invite{}, fmt.Errorf("%w: %v", ErrInvalidInvite, err)
		}
		code, err = codeFromURL(u)
		if err != nil {
			return Invite{}, err
		}
	}

	code = strings.ToUpper(strings.TrimSuffix(code, "/"))
	if !ValidCode(code) {
		return Invite{}, fmt.Errorf("%w: bad room code %q", ErrInvalidInvite, code)
	}
	return Invite{RoomID: code, Join: true}, nil
}

func codeFromURL(u *url.URL) (string, error) {
	path := strings.Trim(u.Path, "/")
	switch u.Scheme {
	case "roomdrop", "p2pshare":
		// join/CODE parses with "join" as the host.
		if u.Host == "join" && path != "" {
			return path, nil
		}
		if rest, ok := strings.CutPrefix(path, "join/"); ok && u.Host == "" {
			return rest, nil
		}
	case "https", "http":
		if rest, ok := strings.CutPrefix(path, "r/"); ok {
			return rest, nil
		}
	}
	return "", fmt.Errorf("%w: unsupported link %q", ErrInvalidInvite, u.String())
}
