package web

import "embed"

// Content holds the dashboard page and its assets.
//
//go:embed index.html app.js styles.css
var Content embed.FS
