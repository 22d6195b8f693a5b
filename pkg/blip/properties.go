package blip

import "strconv"

// propertyTokens is the fixed dictionary of well-known property strings
// that are abbreviated to a single byte on the wire: a string equal to
// entry i encodes as the byte i+1.
//
// CHANGING THIS ARRAY WILL BREAK PROTOCOL COMPATIBILITY. Entries must not
// be reordered, removed, or inserted.
var propertyTokens = [...]string{
	"Profile",
	"Error-Code",
	"Error-Domain",

	"Content-Type",
	"application/json",
	"application/octet-stream",
	"text/plain; charset=UTF-8",
	"text/xml",

	"Accept",
	"Cache-Control",
	"must-revalidate",
	"If-Match",
	"If-None-Match",
	"Location",
}

// Well-known property names: the request Profile and the reserved names
// used by Error-type messages.
const (
	ProfileProperty      = "Profile"
	ErrorDomainProperty  = "Error-Domain"
	ErrorCodeProperty    = "Error-Code"
	ErrorMessageProperty = "Error-Message"
)

// Property is one (name, value) pair of a message's property table.
type Property struct {
	Name  string
	Value string
}

// Properties is the ordered property table of a message.
type Properties []Property

// Value returns the value of the first property with the given name.
// The second return is false if no such property exists.
func (p Properties) Value(name string) (string, bool) {
	for _, prop := range p {
		if prop.Name == name {
			return prop.Value, true
		}
	}
	return "", false
}

// Int returns the value of the named property parsed as a signed decimal
// integer. It returns def if the property is absent or if the value has
// any non-digit trailing bytes.
func (p Properties) Int(name string, def int64) int64 {
	v, ok := p.Value(name)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

// validatePropertyString reports whether a string may appear in a property
// table. Strings must not contain NUL bytes (the pair terminator), and a
// nonempty string must not begin with a control byte: a leading byte below
// 32 is indistinguishable from a dictionary token.
func validatePropertyString(s string) error {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return ErrInvalidProperty
		}
	}
	if len(s) > 0 && s[0] < 32 {
		return ErrInvalidProperty
	}
	return nil
}

// appendPropertyString appends the encoded form of one property string:
// the single token byte if s is in the dictionary, else the raw bytes,
// followed by the NUL terminator. The caller has already validated s.
func appendPropertyString(buf []byte, s string) []byte {
	for i, tok := range propertyTokens {
		if s == tok {
			return append(buf, byte(i+1), 0)
		}
	}
	buf = append(buf, s...)
	return append(buf, 0)
}

// decodeProperties parses an encoded property table: alternating
// null-terminated name and value strings. A string of length 1 whose byte
// is a valid token index expands to its dictionary entry. The buffer must
// end exactly on a terminator boundary and hold an even number of strings.
func decodeProperties(buf []byte) (Properties, error) {
	if len(buf) == 0 {
		return nil, nil
	}
	if buf[len(buf)-1] != 0 {
		return nil, ErrMalformedProperties
	}

	var props Properties
	pos := 0
	for pos < len(buf) {
		name, next, err := readPropertyString(buf, pos)
		if err != nil {
			return nil, err
		}
		value, next, err := readPropertyString(buf, next)
		if err != nil {
			return nil, err
		}
		props = append(props, Property{Name: name, Value: value})
		pos = next
	}
	return props, nil
}

// readPropertyString reads one null-terminated string starting at pos,
// expanding single-byte tokens, and returns it with the position past the
// terminator.
func readPropertyString(buf []byte, pos int) (string, int, error) {
	if pos >= len(buf) {
		return "", 0, ErrMalformedProperties
	}
	end := pos
	for buf[end] != 0 {
		end++
		if end >= len(buf) {
			return "", 0, ErrMalformedProperties
		}
	}
	s := buf[pos:end]
	if len(s) == 1 && s[0] >= 1 && int(s[0]) <= len(propertyTokens) {
		return propertyTokens[s[0]-1], end + 1, nil
	}
	return string(s), end + 1, nil
}
