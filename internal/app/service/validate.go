package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/atinyakov/go-user-registry/internal/storage"
)

var (
	emailRe  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	mobileRe = regexp.MustCompile(`^\d{10}$`)
)

func validateEmail(email string) error {
	if !emailRe.MatchString(email) {
		return fmt.Errorf("%w: invalid email format", ErrInvalidFormat)
	}
	return nil
}

func validateMobile(mobile string) error {
	if !mobileRe.MatchString(mobile) {
		return fmt.Errorf("%w: mobile number must be 10 digits", ErrInvalidFormat)
	}
	return nil
}

func (u NewUser) validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"username", u.Username},
		{"password", u.Password},
		{"email", u.Email},
		{"mobile", u.Mobile},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}

	if err := validateEmail(u.Email); err != nil {
		return err
	}
	return validateMobile(u.Mobile)
}

// checkUnique scans users for a taken username or email, skipping the
// record with id except. Empty values are not checked.
func checkUnique(users []storage.UserRecord, username, email string, except int64) error {
	for _, u := range users {
		if u.ID == except {
			continue
		}
		if username != "" && u.Username == username {
			return ErrDuplicateUsername
		}
	}
	for _, u := range users {
		if u.ID == except {
			continue
		}
		if email != "" && u.Email == email {
			return ErrDuplicateEmail
		}
	}
	return nil
}

func indexOf(users []storage.UserRecord, id int64) int {
	for i, u := range users {
		if u.ID == id {
			return i
		}
	}
	return -1
}
