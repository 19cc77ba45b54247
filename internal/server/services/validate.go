package services

import (
	"regexp"
	"strings"

	"github.com/dmitrijs2005/jobtrack/internal/common"
)

const (
	minPasswordLen = 6
	// bcrypt ignores everything past 72 bytes.
	maxPasswordLen = 72
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func checkPassword(v *common.ValidationError, field, password string) {
	switch {
	case len(password) < minPasswordLen:
		v.Add(field, "must be at least 6 characters")
	case len(password) > maxPasswordLen:
		v.Add(field, "must be at most 72 bytes")
	}
}

func checkEmail(v *common.ValidationError, email string) {
	if !emailRegex.MatchString(email) {
		v.Add("email", "must be a valid email address")
	}
}

func checkRequired(v *common.ValidationError, field, value string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "is required")
	}
}
