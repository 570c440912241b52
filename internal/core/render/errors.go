package render

import "errors"

var (
	// ErrRender wraps every failure returned by a Renderer.
	ErrRender = errors.New("render failed")
	// ErrNoTemplate is returned when neither an inline nor a file template
	// exists under the requested name.
	ErrNoTemplate = errors.New("template not found")
)
