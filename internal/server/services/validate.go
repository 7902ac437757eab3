package services

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/authkeeper/internal/common"
)

const (
	nameMinLen     = 2
	nameMaxLen     = 50
	passwordMinLen = 8
	passwordMaxLen = 32
)

// RegisterInput is the registration request after transport decoding.
type RegisterInput struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// UpdateUserInput is a partial profile update; nil fields are left alone.
type UpdateUserInput struct {
	Email     *string
	FirstName *string
	LastName  *string
	IsActive  *bool
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func checkEmail(email string) string {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "email must be an email"
	}
	return ""
}

func checkLength(field, value string, min, max int) string {
	n := utf8.RuneCountInString(value)
	switch {
	case n < min:
		return fmt.Sprintf("%s must be longer than or equal to %d characters", field, min)
	case n > max:
		return fmt.Sprintf("%s must be shorter than or equal to %d characters", field, max)
	}
	return ""
}

func validationError(op string, problems []string) error {
	var msgs []string
	for _, p := range problems {
		if p != "" {
			msgs = append(msgs, p)
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return common.Msgf(common.KindValidation, op, "%s", strings.Join(msgs, "; "))
}

// normalize trims and lower-cases the email, trims the names and checks
// every field. All problems are reported in one validation error.
func (in RegisterInput) normalize(op string) (RegisterInput, error) {
	in.Email = normalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	err := validationError(op, []string{
		checkEmail(in.Email),
		checkLength("firstName", in.FirstName, nameMinLen, nameMaxLen),
		checkLength("lastName", in.LastName, nameMinLen, nameMaxLen),
		checkLength("password", in.Password, passwordMinLen, passwordMaxLen),
	})
	return in, err
}

func (in UpdateUserInput) normalize(op string) (UpdateUserInput, error) {
	var problems []string
	if in.Email != nil {
		e := normalizeEmail(*in.Email)
		in.Email = &e
		problems = append(problems, checkEmail(e))
	}
	if in.FirstName != nil {
		n := strings.TrimSpace(*in.FirstName)
		in.FirstName = &n
		problems = append(problems, checkLength("firstName", n, nameMinLen, nameMaxLen))
	}
	if in.LastName != nil {
		n := strings.TrimSpace(*in.LastName)
		in.LastName = &n
		problems = append(problems, checkLength("lastName", n, nameMinLen, nameMaxLen))
	}
	return in, validationError(op, problems)
}
