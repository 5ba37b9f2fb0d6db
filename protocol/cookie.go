package protocol

import (
	"strconv"
	"strings"
	"time"
)

// SameSite mirrors the three values the Set-Cookie attribute accepts, plus
// NotSet meaning "omit the attribute".
type SameSite int

const (
	SameSiteNotSet SameSite = iota
	SameSiteStrict
	SameSiteLax
	SameSiteNone
)

func (s SameSite) String() string {
	switch s {
	case SameSiteStrict:
		return "Strict"
	case SameSiteLax:
		return "Lax"
	case SameSiteNone:
		return "None"
	default:
		return ""
	}
}

// Cookie models a single Set-Cookie entry. Expire and MaxAge are mutually
// exclusive: setting one clears the other, enforced by SetExpire/SetMaxAge
// rather than by exposing the fields directly.
type Cookie struct {
	Name     string
	Value    string
	Path     string
	Domain   string
	Secure   bool
	HTTPOnly bool
	SameSite SameSite

	expire    time.Time
	hasExpire bool
	maxAge    int
	hasMaxAge bool
}

// NewCookie builds a cookie with name and value; everything else defaults
// to its zero value until set.
func NewCookie(name, value string) Cookie {
	return Cookie{Name: name, Value: value}
}

// SetExpire sets an absolute expiry and clears any MaxAge.
func (c *Cookie) SetExpire(t time.Time) {
	c.expire = t
	c.hasExpire = true
	c.hasMaxAge = false
}

// SetMaxAge sets a relative expiry in seconds and clears any Expire.
func (c *Cookie) SetMaxAge(seconds int) {
	c.maxAge = seconds
	c.hasMaxAge = true
	c.hasExpire = false
}

// Valid reports whether the cookie has a name and is therefore safe to
// hand to Response.SetCookie. A cookie built without a name is the
// programmer error spec.md 7 wants surfaced explicitly.
func (c Cookie) Valid() bool {
	return c.Name != ""
}

// Invalidate returns a cookie that instructs the client to delete itself:
// empty value, negative max-age, same name/path/domain.
func (c Cookie) Invalidate() Cookie {
	inv := c
	inv.Value = ""
	inv.hasExpire = false
	inv.SetMaxAge(-1)
	return inv
}

// String renders the cookie's attributes in the exact order spec.md 4.3
// and 6 specify: Name=Value, Max-Age or Expires, path, domain, SameSite
// (implying Secure when None), Secure, HttpOnly.
func (c Cookie) String() string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte('=')
	b.WriteString(c.Value)

	if c.hasMaxAge {
		b.WriteString("; Max-Age=")
		b.WriteString(strconv.Itoa(c.maxAge))
	} else if c.hasExpire {
		b.WriteString("; Expires=")
		b.WriteString(FormatHTTPDate(c.expire))
	}

	if c.Path != "" {
		b.WriteString("; path=")
		b.WriteString(c.Path)
	}
	if c.Domain != "" {
		b.WriteString("; domain=")
		b.WriteString(c.Domain)
	}

	secure := c.Secure
	if c.SameSite != SameSiteNotSet {
		b.WriteString("; SameSite=")
		b.WriteString(c.SameSite.String())
		if c.SameSite == SameSiteNone {
			secure = true
		}
	}
	if secure {
		b.WriteString("; Secure")
	}
	if c.HTTPOnly {
		b.WriteString("; HttpOnly")
	}
	return b.String()
}
