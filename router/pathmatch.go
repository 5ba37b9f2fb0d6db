package router

import (
	"strings"

	"github.com/m1dok/serverino/protocol"
)

// pathNode is a radix-tree node for parameterized path patterns, adapted
// from the teacher's trie/radix router (server/router/trie.go,
// server/router/radix.go). spec.md's route predicates are plain
// (Request) -> bool closures with no notion of path parameters; PathMatch
// is a supplemental convenience built on top of that primitive rather
// than a replacement for it -- it compiles a pattern once and returns an
// ordinary Predicate, so it composes with priority and OR-style predicate
// lists exactly like Equals does.
type pathNode struct {
	prefix  string
	ch      []*pathNode
	isparam bool
	leaf    bool
}

// compilePathPattern builds the tiny single-branch tree for one pattern
// like "/users/:id/posts/:postID". Patterns are compiled once at
// registration time, not per-request.
func compilePathPattern(pattern string) *pathNode {
	root := &pathNode{}
	cur := root
	trimmed := strings.Trim(pattern, "/")
	if trimmed == "" {
		root.leaf = true
		return root
	}
	for _, seg := range strings.Split(trimmed, "/") {
		isparam := strings.HasPrefix(seg, ":")
		name := seg
		if isparam {
			name = seg[1:]
		}
		child := &pathNode{prefix: name, isparam: isparam}
		cur.ch = append(cur.ch, child)
		cur = child
	}
	cur.leaf = true
	return root
}

// match walks path's segments against the compiled pattern, collecting
// :param values by name into params. It returns false on any mismatch or
// segment-count difference -- no partial matches, no wildcard tails.
func (n *pathNode) match(segments []string, params map[string]string) bool {
	cur := n
	for _, seg := range segments {
		if len(cur.ch) == 0 {
			return false
		}
		next := cur.ch[0]
		if next.isparam {
			params[next.prefix] = seg
		} else if next.prefix != seg {
			return false
		}
		cur = next
	}
	return cur.leaf
}

// PathMatch returns a Predicate that matches req.URI against pattern,
// extracting any ":name" segments into req.Get under their param name.
// Reusing Get rather than adding a dedicated Params field keeps
// protocol.Request's data model exactly as spec.md 3 specifies it.
func PathMatch(pattern string) Predicate {
	tree := compilePathPattern(pattern)
	return func(req *protocol.Request) bool {
		trimmed := strings.Trim(req.URI, "/")
		var segments []string
		if trimmed != "" {
			segments = strings.Split(trimmed, "/")
		}
		params := map[string]string{}
		if !tree.match(segments, params) {
			return false
		}
		for k, v := range params {
			req.Get[k] = v
		}
		return true
	}
}
