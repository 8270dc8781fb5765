package validation

import (
	"errors"
	"testing"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v
}

func TestValidate_Valid(t *testing.T) {
	v := newTestValidator(t)

	cases := []struct {
		schema string
		body   string
	}{
		{Register, `{"email":"ana@example.com","password":"hunter22!","name":"Ana"}`},
		{Login, `{"email":"ana@example.com","password":"x"}`},
		{Scan, `{"query":"best seo tools","brand":{"name":"Acme","domain":"acme.io"}}`},
		{Scan, `{"query":"crm","brand":{"domain":"acme.io"},"crawler_policy":{"voice_assistant_bot":false}}`},
		{Scan, `{"tracked_item_id":"7b1f6f3e-2a6c-4c55-9a4b-3d2f1e0c9b8a"}`},
		{TrackedItem, `{"query":"crm","brand":{"name":"Acme"},"auto_rescan":true}`},
		{Purchase, `{"package_id":"growth"}`},
		{Promo, `{"code":"LAUNCH"}`},
	}
	for _, tc := range cases {
		if err := v.Validate(tc.schema, []byte(tc.body)); err != nil {
			t.Errorf("%s %s: unexpected error: %v", tc.schema, tc.body, err)
		}
	}
}

func TestValidate_Invalid(t *testing.T) {
	v := newTestValidator(t)

	cases := []struct {
		name   string
		schema string
		body   string
	}{
		{"malformed json", Scan, `{"query":`},
		{"empty query", Scan, `{"query":"   ","brand":{"name":"Acme"}}`},
		{"missing brand", Scan, `{"query":"crm"}`},
		{"empty brand", Scan, `{"query":"crm","brand":{}}`},
		{"blank brand name", Scan, `{"query":"crm","brand":{"name":" "}}`},
		{"bad tracked item id", Scan, `{"tracked_item_id":"nope"}`},
		{"unknown field", Scan, `{"query":"crm","brand":{"name":"Acme"},"extra":1}`},
		{"short password", Register, `{"email":"ana@example.com","password":"short"}`},
		{"bad email", Register, `{"email":"not-an-email","password":"longenough"}`},
		{"unknown package", Purchase, `{"package_id":"enterprise"}`},
		{"missing code", Promo, `{}`},
	}
	for _, tc := range cases {
		err := v.Validate(tc.schema, []byte(tc.body))
		if !errors.Is(err, ErrValidation) {
			t.Errorf("%s: got %v, want ErrValidation", tc.name, err)
		}
	}
}

func TestValidate_UnknownSchema(t *testing.T) {
	v := newTestValidator(t)
	err := v.Validate("nope", []byte(`{}`))
	if err == nil || errors.Is(err, ErrValidation) {
		t.Fatalf("got %v, want non-validation error", err)
	}
}
