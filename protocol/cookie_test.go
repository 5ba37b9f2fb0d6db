package protocol

import (
	"strings"
	"testing"
	"time"
)

func TestCookieMaxAgeClearsExpire(t *testing.T) {
	c := NewCookie("a", "b")
	c.SetExpire(time.Now())
	c.SetMaxAge(60)
	if c.hasExpire {
		t.Error("SetMaxAge should clear hasExpire")
	}
	if !strings.Contains(c.String(), "Max-Age=60") {
		t.Errorf("String() = %q, want Max-Age=60", c.String())
	}
}

func TestCookieExpireClearsMaxAge(t *testing.T) {
	c := NewCookie("a", "b")
	c.SetMaxAge(60)
	c.SetExpire(time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC))
	if c.hasMaxAge {
		t.Error("SetExpire should clear hasMaxAge")
	}
	if !strings.Contains(c.String(), "Expires=Wed, 02 Jan 2030 03:04:05 GMT") {
		t.Errorf("String() = %q", c.String())
	}
}

func TestCookieInvalidate(t *testing.T) {
	c := NewCookie("sess", "value")
	inv := c.Invalidate()
	if inv.Value != "" {
		t.Errorf("Invalidate() Value = %q, want empty", inv.Value)
	}
	if !strings.Contains(inv.String(), "Max-Age=-1") {
		t.Errorf("Invalidate() String() = %q, want negative Max-Age", inv.String())
	}
}

func TestCookieAttributeOrder(t *testing.T) {
	c := NewCookie("n", "v")
	c.SetMaxAge(10)
	c.Path = "/p"
	c.Domain = "example.com"
	c.SameSite = SameSiteLax
	c.HTTPOnly = true

	got := c.String()
	want := "n=v; Max-Age=10; path=/p; domain=example.com; SameSite=Lax; HttpOnly"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestCookieValid(t *testing.T) {
	if (Cookie{}).Valid() {
		t.Error("empty cookie should be invalid")
	}
	if !NewCookie("a", "").Valid() {
		t.Error("cookie with name but empty value should still be valid")
	}
}
