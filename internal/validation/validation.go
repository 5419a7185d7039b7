// Package validation checks form input before it reaches the network.
package validation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const minPasswordLen = 6

// Fields maps a form field to the message shown next to it.
type Fields map[string]string

func (f Fields) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, f[k])
	}
	return strings.Join(parts, "; ")
}

// Login checks the login form inputs. Returns nil or a Fields error.
func Login(email, password string) error {
	f := Fields{}
	if !emailRe.MatchString(email) {
		f["email"] = "enter a valid email address"
	}
	if password == "" {
		f["password"] = "password is required"
	}
	if len(f) > 0 {
		return f
	}
	return nil
}

// Register checks the registration form inputs.
func Register(email, password, confirm string) error {
	f := Fields{}
	if !emailRe.MatchString(email) {
		f["email"] = "enter a valid email address"
	}
	if len(password) < minPasswordLen {
		f["password"] = fmt.Sprintf("password must be at least %d characters", minPasswordLen)
	}
	if confirm == "" {
		f["confirmPassword"] = "confirm your password"
	} else if confirm != password {
		f["confirmPassword"] = "passwords do not match"
	}
	if len(f) > 0 {
		return f
	}
	return nil
}
