// Package admin implements the operator commands of cmd/admin. They call
// the auth service in-process, against the same store the server uses.
package admin

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/jobtrack/internal/common"
	"github.com/dmitrijs2005/jobtrack/internal/server/models"
	"github.com/dmitrijs2005/jobtrack/internal/server/services"
)

// Signupper creates identities.
type Signupper interface {
	Signup(ctx context.Context, in services.SignupInput) (*models.User, error)
}

// ErrUsage is returned for unknown commands and bad flags.
var ErrUsage = errors.New("usage: admin create-user -name NAME -email EMAIL")

type Runner struct {
	svc Signupper
	in  *bufio.Reader
	out io.Writer
}

func NewRunner(svc Signupper, in io.Reader, out io.Writer) *Runner {
	return &Runner{svc: svc, in: bufio.NewReader(in), out: out}
}

// Run dispatches args (without the program name) to a command.
func (r *Runner) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}
	switch args[0] {
	case "create-user":
		return r.createUser(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q: %w", args[0], ErrUsage)
	}
}

func (r *Runner) createUser(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	fs.SetOutput(r.out)
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "login email")
	if err := fs.Parse(args); err != nil {
		return ErrUsage
	}

	var err error
	if *name == "" {
		if *name, err = GetSimpleText(r.in, "Name", r.out); err != nil {
			return err
		}
	}
	if *email == "" {
		if *email, err = GetSimpleText(r.in, "Email", r.out); err != nil {
			return err
		}
	}

	pw, err := GetPassword(r.out, "Password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	defer common.WipeByteArray(pw)

	confirm, err := GetPassword(r.out, "Repeat password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	defer common.WipeByteArray(confirm)

	if string(pw) != string(confirm) {
		return errors.New("passwords do not match")
	}

	u, err := r.svc.Signup(ctx, services.SignupInput{Name: *name, Email: *email, Password: string(pw)})
	if err != nil {
		return err
	}

	fmt.Fprintf(r.out, "created user %s (%s)\n", u.Email, u.ID)
	return nil
}
