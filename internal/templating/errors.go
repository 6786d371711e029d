package templating

import (
	"errors"
	"fmt"

	"github.com/hashicorp/hcl/v2"
)

// ErrTemplateResolution matches every ResolutionError.
var ErrTemplateResolution = errors.New("template resolution error")

// ResolutionError reports a template that could not be evaluated. Path is
// the dotted location of the offending leaf.
type ResolutionError struct {
	Path     string
	Template string
	Reason   string
	Diags    hcl.Diagnostics
}

func (e *ResolutionError) Error() string {
	reason := e.Reason
	if reason == "" && e.Diags.HasErrors() {
		reason = e.Diags.Error()
	}
	return fmt.Sprintf("cannot resolve template %q at %q: %s", e.Template, e.Path, reason)
}

// Is lets errors.Is match ErrTemplateResolution.
func (e *ResolutionError) Is(target error) bool {
	return target == ErrTemplateResolution
}

// Unwrap exposes the HCL diagnostics, if any.
func (e *ResolutionError) Unwrap() error {
	if e.Diags.HasErrors() {
		return e.Diags
	}
	return nil
}
