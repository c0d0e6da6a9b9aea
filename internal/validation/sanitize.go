package validation

import (
	"reflect"
	"regexp"
	"strings"
)

// entityPrefix matches a character reference at the start of a string, so an
// ampersand that already opens one is left alone and Escape stays idempotent.
var entityPrefix = regexp.MustCompile(`^&(?:#[0-9]{1,7}|#[xX][0-9a-fA-F]{1,6}|[A-Za-z][A-Za-z0-9]{1,31});`)

// Escape replaces HTML-significant characters with entities.
func Escape(s string) string {
	if !strings.ContainsAny(s, "&<>\"'`/\\") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 16)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '&':
			if entityPrefix.MatchString(s[i:]) {
				b.WriteByte(c)
			} else {
				b.WriteString("&amp;")
			}
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&#x27;")
		case '`':
			b.WriteString("&#96;")
		case '/':
			b.WriteString("&#x2F;")
		case '\\':
			b.WriteString("&#x5C;")
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Sanitize escapes every exported string field of the struct v points to.
// Any other value is left untouched.
func Sanitize(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if f.Kind() == reflect.String && f.CanSet() {
			f.SetString(Escape(f.String()))
		}
	}
}
