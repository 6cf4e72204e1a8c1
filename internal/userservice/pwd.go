package userservice

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

func (p *Password) set(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), 12)
	if err != nil {
		return err
	}

	p.Plain = pwd
	p.hash = hash

	return nil
}

// compare reports false for accounts that never set a password.
func (p *Password) compare(pwd string) (bool, error) {
	if p.hash == nil {
		return false, nil
	}

	err := bcrypt.CompareHashAndPassword(p.hash, []byte(pwd))
	if err != nil {
		switch {
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, err
		}
	}

	return true, nil
}

func (p *Password) isSet() bool {
	return p.hash != nil
}

// value returns nil for an unset hash so the column is stored as NULL.
func (p *Password) value() any {
	if p.hash == nil {
		return nil
	}
	return p.hash
}
