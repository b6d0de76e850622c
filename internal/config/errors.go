package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
)

// DocumentError reports a desired-state document that failed to parse or
// validate. It is a user input error with no partial effect.
type DocumentError struct {
	Filename string
	Diags    hcl.Diagnostics
	Msg      string
}

func (e *DocumentError) Error() string {
	if e.Msg != "" {
		if e.Filename != "" {
			return fmt.Sprintf("malformed document %s: %s", e.Filename, e.Msg)
		}
		return "malformed document: " + e.Msg
	}
	return "malformed document: " + e.Diags.Error()
}

// UnknownReferenceError reports a reference to a resource that is not
// declared in the document.
type UnknownReferenceError struct {
	Resource string // the resource containing the reference
	Attr     string // the attribute holding it
	Target   string // the undeclared name being referenced
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("resource %q: attribute %q references undeclared resource %q",
		e.Resource, e.Attr, e.Target)
}
