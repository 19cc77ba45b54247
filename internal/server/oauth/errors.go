package oauth

import (
	"fmt"
	"strings"
)

// ProviderError describes a failed call to the identity provider. Kind is
// common.ErrProviderExchange or common.ErrProviderProfile; errors.Is matches
// both Kind and the underlying cause. The client secret never appears here.
type ProviderError struct {
	Kind        error
	StatusCode  int
	Code        string
	Description string
	Err         error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Code != "" {
		b.WriteString(": " + e.Code)
	}
	if e.Description != "" {
		b.WriteString(": " + e.Description)
	}
	if e.Err != nil && e.Code == "" && e.Description == "" {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
