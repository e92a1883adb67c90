package web

import "embed"

// staticFiles holds the web interface; the binary serves it without any
// files on disk.
//
//go:embed static/*
var staticFiles embed.FS
