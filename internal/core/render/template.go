package render

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/zeusync/mist/render"

type compiled struct {
	sum  uint64
	tmpl *template.Template
}

// TemplateRenderer renders html/template templates from a Source. Parsed
// templates are cached and re-parsed only when the source text changes.
type TemplateRenderer struct {
	source *Source
	md     goldmark.Markdown
	tracer trace.Tracer

	mu    sync.RWMutex
	cache map[string]compiled
}

// NewTemplateRenderer creates a renderer backed by source.
func NewTemplateRenderer(source *Source) *TemplateRenderer {
	return &TemplateRenderer{
		source: source,
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		tracer: otel.Tracer(tracerName),
		cache:  make(map[string]compiled),
	}
}

func (r *TemplateRenderer) Render(ctx context.Context, ref string, data any) (string, error) {
	_, span := r.tracer.Start(ctx, "mist.render",
		trace.WithAttributes(attribute.String("mist.template", ref)))
	defer span.End()

	out, err := r.render(ref, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("%w: %s: %w", ErrRender, ref, err)
	}
	return out, nil
}

func (r *TemplateRenderer) render(ref string, data any) (string, error) {
	tmpl, err := r.template(ref)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err = tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (r *TemplateRenderer) template(ref string) (*template.Template, error) {
	text, err := r.source.Lookup(ref)
	if err != nil {
		return nil, err
	}
	sum := xxhash.Sum64String(text)

	r.mu.RLock()
	c, ok := r.cache[ref]
	r.mu.RUnlock()
	if ok && c.sum == sum {
		return c.tmpl, nil
	}

	tmpl, err := template.New(ref).Funcs(template.FuncMap{"markdown": r.markdown}).Parse(text)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.cache[ref] = compiled{sum: sum, tmpl: tmpl}
	r.mu.Unlock()
	return tmpl, nil
}

func (r *TemplateRenderer) markdown(v any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(fmt.Sprint(v)), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
