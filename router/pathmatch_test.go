package router

import (
	"testing"

	"github.com/m1dok/serverino/protocol"
)

func TestPathMatchExtractsParams(t *testing.T) {
	pred := PathMatch("/users/:id/posts/:postID")
	req := protocol.NewRequest()
	req.URI = "/users/42/posts/7"

	if !pred(req) {
		t.Fatal("expected match")
	}
	if req.Get["id"] != "42" || req.Get["postID"] != "7" {
		t.Errorf("Get = %v, want id=42 postID=7", req.Get)
	}
}

func TestPathMatchRejectsWrongSegmentCount(t *testing.T) {
	pred := PathMatch("/users/:id")
	req := protocol.NewRequest()
	req.URI = "/users/42/extra"
	if pred(req) {
		t.Error("expected mismatch on extra segment")
	}
}

func TestPathMatchRejectsLiteralMismatch(t *testing.T) {
	pred := PathMatch("/users/:id")
	req := protocol.NewRequest()
	req.URI = "/orders/42"
	if pred(req) {
		t.Error("expected mismatch on differing literal segment")
	}
}
