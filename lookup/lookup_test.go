package lookup_test

import (
	"testing"

	"github.com/puzzlefixyt-crypto/deeptracex/lookup"

	"github.com/go-faster/errors"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		kind    lookup.Kind
		query   string
		wantErr error
	}{
		{name: "валидный телефон", kind: lookup.KindPhone, query: "9876543210"},
		{name: "телефон с кодом страны", kind: lookup.KindPhone, query: "+919876543210", wantErr: lookup.ErrInvalidFormat},
		{name: "телефон начинается с 5", kind: lookup.KindPhone, query: "5876543210", wantErr: lookup.ErrInvalidFormat},
		{name: "короткий телефон", kind: lookup.KindPhone, query: "98765", wantErr: lookup.ErrInvalidFormat},

		{name: "валидный aadhaar", kind: lookup.KindAadhaar, query: "123456789012"},
		{name: "aadhaar с буквами", kind: lookup.KindAadhaar, query: "12345678901a", wantErr: lookup.ErrInvalidFormat},
		{name: "aadhaar из 11 цифр", kind: lookup.KindAadhaar, query: "12345678901", wantErr: lookup.ErrInvalidFormat},

		{name: "валидный gst", kind: lookup.KindGST, query: "22AAAAA0000A1Z5"},
		{name: "gst без литеры Z", kind: lookup.KindGST, query: "22AAAAA0000A1X5", wantErr: lookup.ErrInvalidFormat},

		{name: "валидный ifsc", kind: lookup.KindIFSC, query: "SBIN0001234"},
		{name: "ifsc в нижнем регистре", kind: lookup.KindIFSC, query: "sbin0001234", wantErr: lookup.ErrInvalidFormat},
		{name: "ifsc без нуля", kind: lookup.KindIFSC, query: "SBIN1001234", wantErr: lookup.ErrInvalidFormat},

		{name: "валидный upi", kind: lookup.KindUPI, query: "user@upi"},
		{name: "upi без домена", kind: lookup.KindUPI, query: "user", wantErr: lookup.ErrInvalidFormat},

		{name: "валидный fam", kind: lookup.KindFam, query: "user@fam"},
		{name: "fam с другим доменом", kind: lookup.KindFam, query: "user@upi", wantErr: lookup.ErrInvalidFormat},

		{name: "любой номер транспорта", kind: lookup.KindVehicle, query: "DL01AB1234"},

		{name: "пустой запрос", kind: lookup.KindPhone, query: "", wantErr: lookup.ErrEmptyQuery},
		{name: "неизвестный вид", kind: lookup.Kind("dns"), query: "x", wantErr: lookup.ErrUnknownKind},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := lookup.Validate(tc.kind, tc.query)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Validate(%q, %q) = %v, want %v", tc.kind, tc.query, err, tc.wantErr)
			}
		})
	}
}

func TestKindsHavePlaceholders(t *testing.T) {
	t.Parallel()

	for _, kind := range lookup.Kinds() {
		if lookup.Placeholder(kind) == "" {
			t.Errorf("Placeholder(%q) is empty", kind)
		}
	}
	if lookup.Placeholder(lookup.Kind("dns")) != "" {
		t.Error("Placeholder for unknown kind should be empty")
	}
}
