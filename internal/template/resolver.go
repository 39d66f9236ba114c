package template

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sungwon/mail-dispatch/internal/storage"
)

// Getter fetches stored templates. Implemented by storage.Queries.
type Getter interface {
	GetTemplate(ctx context.Context, arg storage.GetTemplateParams) (storage.Template, error)
}

// Resolver fetches a template by (id, lang) and substitutes placeholders.
type Resolver struct {
	queries   Getter
	delimiter string
}

// NewResolver creates a Resolver. An empty delimiter falls back to
// DefaultDelimiter.
func NewResolver(queries Getter, delimiter string) *Resolver {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	return &Resolver{queries: queries, delimiter: delimiter}
}

// Resolved is a template after placeholder substitution.
type Resolved struct {
	Subject string
	Body    string
	Charset string
}

// Resolve fetches the (templateID, lang) template and substitutes values
// into its subject and body. A missing template returns a *NotFoundError.
func (r *Resolver) Resolve(ctx context.Context, templateID, lang string, values map[string]any) (Resolved, error) {
	t, err := r.queries.GetTemplate(ctx, storage.GetTemplateParams{
		TemplateID: templateID,
		Lang:       lang,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Resolved{}, &NotFoundError{TemplateID: templateID, Lang: lang}
		}
		return Resolved{}, fmt.Errorf("get template %s/%s: %w", templateID, lang, err)
	}

	return Resolved{
		Subject: Substitute(t.Subject, values),
		Body:    Substitute(t.Body, values),
		Charset: t.Charset,
	}, nil
}

// ResolveBlended fetches a template whose body is a single blended string,
// substitutes values, and splits the result into subject and body with the
// configured delimiter. Supports template-engine integrations that emit one
// combined string; the stored subject column is ignored.
func (r *Resolver) ResolveBlended(ctx context.Context, templateID, lang string, values map[string]any) (Resolved, error) {
	resolved, err := r.Resolve(ctx, templateID, lang, values)
	if err != nil {
		return Resolved{}, err
	}

	subject, body, err := SplitSubjectBody(resolved.Body, r.delimiter)
	if err != nil {
		return Resolved{}, fmt.Errorf("split template %s/%s: %w", templateID, lang, err)
	}

	resolved.Subject = subject
	resolved.Body = body
	return resolved, nil
}
