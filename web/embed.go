package web

import "embed"

// TemplatesFS embeds HTML templates for server-side rendering.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds static assets (css/js/images).
//
//go:embed static/*
var StaticFS embed.FS

// DefaultRules is the rules document served when no rules file is configured.
//
//go:embed rules.md
var DefaultRules []byte
