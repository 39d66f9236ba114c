package template

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/sungwon/mail-dispatch/internal/storage"
)

// mockGetter implements Getter for testing.
type mockGetter struct {
	templates map[string]storage.Template
}

func (m *mockGetter) GetTemplate(_ context.Context, arg storage.GetTemplateParams) (storage.Template, error) {
	t, ok := m.templates[arg.TemplateID+"/"+arg.Lang]
	if !ok {
		return storage.Template{}, pgx.ErrNoRows
	}
	return t, nil
}

func TestResolverResolve(t *testing.T) {
	getter := &mockGetter{templates: map[string]storage.Template{
		"welcome/en": {
			TemplateID: "welcome",
			Lang:       "en",
			Subject:    "Welcome {name}",
			Body:       "Hello {name}, your code is {code}.",
			Charset:    "UTF-8",
		},
	}}
	r := NewResolver(getter, "---")

	resolved, err := r.Resolve(context.Background(), "welcome", "en", map[string]any{
		"name": "Alice",
		"code": 1234,
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if resolved.Subject != "Welcome Alice" {
		t.Errorf("expected subject 'Welcome Alice', got %q", resolved.Subject)
	}
	if resolved.Body != "Hello Alice, your code is 1234." {
		t.Errorf("unexpected body %q", resolved.Body)
	}
	if resolved.Charset != "UTF-8" {
		t.Errorf("expected charset UTF-8, got %q", resolved.Charset)
	}
}

func TestResolverNotFound(t *testing.T) {
	r := NewResolver(&mockGetter{}, "---")

	_, err := r.Resolve(context.Background(), "missing", "ja", nil)

	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if notFound.TemplateID != "missing" || notFound.Lang != "ja" {
		t.Errorf("error should carry template id and lang, got %+v", notFound)
	}
}

func TestResolverResolveBlended(t *testing.T) {
	getter := &mockGetter{templates: map[string]storage.Template{
		"alert/en": {
			TemplateID: "alert",
			Lang:       "en",
			Body:       "Alert for {host}\n---\nDisk usage on {host} is high.\n",
			Charset:    "UTF-8",
		},
	}}
	r := NewResolver(getter, "---")

	resolved, err := r.ResolveBlended(context.Background(), "alert", "en", map[string]any{"host": "db1"})
	if err != nil {
		t.Fatalf("ResolveBlended failed: %v", err)
	}

	if resolved.Subject != "Alert for db1" {
		t.Errorf("expected split subject, got %q", resolved.Subject)
	}
	if resolved.Body != "Disk usage on db1 is high.\n" {
		t.Errorf("unexpected body %q", resolved.Body)
	}
}

func TestResolverResolveBlendedBadGrammar(t *testing.T) {
	getter := &mockGetter{templates: map[string]storage.Template{
		"broken/en": {Body: "no delimiter here", Charset: "UTF-8"},
	}}
	r := NewResolver(getter, "---")

	_, err := r.ResolveBlended(context.Background(), "broken", "en", nil)
	if !errors.Is(err, ErrDelimiterNotFound) {
		t.Errorf("expected ErrDelimiterNotFound, got %v", err)
	}
}
