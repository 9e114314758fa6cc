// Package web carries the page templates and browser assets compiled into
// the finmgr binary, so the server runs from any working directory.
package web

import "embed"

// TemplatesFS holds layout.html plus one file per page. Partials swapped by
// htmx are defined inside the page that owns them.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS is served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
