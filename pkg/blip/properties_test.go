package blip

import "testing"

// encodeProps is a test helper building an encoded property table.
func encodeProps(props Properties) []byte {
	var buf []byte
	for _, p := range props {
		buf = appendPropertyString(buf, p.Name)
		buf = appendPropertyString(buf, p.Value)
	}
	return buf
}

func TestPropertiesRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		props Properties
	}{
		{"empty", nil},
		{"single_pair", Properties{{"Profile", "echo"}}},
		{"plain_strings", Properties{{"X-Custom", "value"}, {"Another", "thing"}}},
		{"tokenized_name", Properties{{"Content-Type", "application/json"}}},
		{"tokenized_value_only", Properties{{"X-Type", "text/xml"}}},
		{"duplicate_names", Properties{{"Accept", "a"}, {"Accept", "b"}}},
		{"empty_value", Properties{{"Profile", ""}}},
		{"empty_name", Properties{{"", "value"}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			encoded := encodeProps(tc.props)
			decoded, err := decodeProperties(encoded)
			if err != nil {
				t.Fatalf("decodeProperties() error = %v", err)
			}
			if len(decoded) != len(tc.props) {
				t.Fatalf("decoded %d pairs, want %d", len(decoded), len(tc.props))
			}
			for i := range tc.props {
				if decoded[i] != tc.props[i] {
					t.Errorf("pair %d = %+v, want %+v", i, decoded[i], tc.props[i])
				}
			}
		})
	}
}

func TestPropertyTokenExactness(t *testing.T) {
	// Each dictionary entry must encode to exactly one byte (the 1-based
	// token) before its terminator, and decode back bit-identically.
	for i, tok := range propertyTokens {
		encoded := appendPropertyString(nil, tok)
		if len(encoded) != 2 {
			t.Errorf("token %q encoded to %d bytes, want 2", tok, len(encoded))
			continue
		}
		if encoded[0] != byte(i+1) {
			t.Errorf("token %q encoded as byte %d, want %d", tok, encoded[0], i+1)
		}
		if encoded[1] != 0 {
			t.Errorf("token %q missing terminator", tok)
		}

		s, next, err := readPropertyString(encoded, 0)
		if err != nil {
			t.Fatalf("readPropertyString(%q) error = %v", tok, err)
		}
		if s != tok || next != 2 {
			t.Errorf("decoded (%q, %d), want (%q, 2)", s, next, tok)
		}
	}
}

func TestPropertyDictionaryFrozen(t *testing.T) {
	// The dictionary order is part of the wire protocol.
	want := []string{
		"Profile", "Error-Code", "Error-Domain",
		"Content-Type", "application/json", "application/octet-stream",
		"text/plain; charset=UTF-8", "text/xml",
		"Accept", "Cache-Control", "must-revalidate",
		"If-Match", "If-None-Match", "Location",
	}
	if len(propertyTokens) != 14 {
		t.Fatalf("dictionary has %d entries, want 14", len(propertyTokens))
	}
	for i, w := range want {
		if propertyTokens[i] != w {
			t.Errorf("token %d = %q, want %q", i+1, propertyTokens[i], w)
		}
	}
}

func TestDecodePropertiesMalformed(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{"no_trailing_zero", []byte("Profile")},
		{"name_without_value", append([]byte("name"), 0)},
		{"value_unterminated", append(append([]byte("n"), 0), []byte("v")...)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := decodeProperties(tc.buf); err != ErrMalformedProperties {
				t.Errorf("decodeProperties() error = %v, want ErrMalformedProperties", err)
			}
		})
	}
}

func TestDecodePropertiesUnknownToken(t *testing.T) {
	// A single byte outside [1..14] is kept as a literal string.
	buf := []byte{0x1F, 0, 'v', 0}
	props, err := decodeProperties(buf)
	if err != nil {
		t.Fatalf("decodeProperties() error = %v", err)
	}
	if len(props) != 1 || props[0].Name != "\x1f" || props[0].Value != "v" {
		t.Errorf("props = %+v", props)
	}
}

func TestValidatePropertyString(t *testing.T) {
	tests := []struct {
		name    string
		s       string
		wantErr bool
	}{
		{"plain", "Profile", false},
		{"empty", "", false},
		{"embedded_nul", "a\x00b", true},
		{"leading_control", "\x01extra", true},
		{"single_control", "\x05", true},
		{"space_leading", " ok", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validatePropertyString(tc.s)
			if (err != nil) != tc.wantErr {
				t.Errorf("validatePropertyString(%q) error = %v, wantErr %v", tc.s, err, tc.wantErr)
			}
		})
	}
}

func TestPropertiesLookup(t *testing.T) {
	props := Properties{
		{"Profile", "sync"},
		{"Error-Code", "404"},
		{"Bad-Int", "12x"},
		{"Profile", "shadowed"},
	}

	if v, ok := props.Value("Profile"); !ok || v != "sync" {
		t.Errorf("Value(Profile) = (%q, %v), want (sync, true)", v, ok)
	}
	if _, ok := props.Value("Missing"); ok {
		t.Error("Value(Missing) found")
	}
	if n := props.Int("Error-Code", -1); n != 404 {
		t.Errorf("Int(Error-Code) = %d, want 404", n)
	}
	if n := props.Int("Bad-Int", -1); n != -1 {
		t.Errorf("Int(Bad-Int) = %d, want default -1", n)
	}
	if n := props.Int("Missing", 7); n != 7 {
		t.Errorf("Int(Missing) = %d, want default 7", n)
	}
}

func TestEncodedPropsEndOnBoundary(t *testing.T) {
	encoded := encodeProps(Properties{{"Profile", "echo"}})
	if encoded[len(encoded)-1] != 0 {
		t.Error("encoded properties must end with a terminator")
	}
	// Chopping the terminator must fail decode.
	if _, err := decodeProperties(encoded[:len(encoded)-1]); err == nil {
		t.Error("truncated properties decoded without error")
	}
}
