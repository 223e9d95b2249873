package security

import "errors"

// ValidateHabboID checks the shape of a Habbo unique id
// (e.g. "hhbr-1f6505b9c42b8e9a30d180765b1dd7e3"). The upstream format is
// "hh" + hotel code + "-" + hex digest; we only enforce enough structure
// to reject garbage before it reaches the store.
func ValidateHabboID(id string) error {
	if id == "" {
		return errors.New("empty habbo id")
	}
	if len(id) < 6 || len(id) > 64 {
		return errors.New("habbo id length out of range")
	}
	if id[0] != 'h' || id[1] != 'h' {
		return errors.New("habbo id must start with hh")
	}

	dash := false
	for i := 2; i < len(id); i++ {
		c := id[i]
		switch {
		case c == '-':
			dash = true
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		default:
			return errors.New("habbo id has invalid characters")
		}
	}
	if !dash {
		return errors.New("habbo id missing separator")
	}
	return nil
}
