// Package web provides the embedded page template for serverwatch.
//
// The template is parsed once at startup by the page package. The script it
// carries opens an event stream and swaps each pushed fragment into the
// element with the matching id.
package web

import "embed"

// Assets is an embedded filesystem containing the page template.
//
//	assets/
//	  index.html    - page skeleton with the mount element and inline script
//
//go:embed assets/*
var Assets embed.FS

// IndexPath is the template's path inside [Assets].
const IndexPath = "assets/index.html"
