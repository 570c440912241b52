// Package render turns component contexts into HTML fragments.
package render

import "context"

// Renderer renders the template named ref with data.
type Renderer interface {
	Render(ctx context.Context, ref string, data any) (string, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, ref string, data any) (string, error)

func (f RendererFunc) Render(ctx context.Context, ref string, data any) (string, error) {
	return f(ctx, ref, data)
}
