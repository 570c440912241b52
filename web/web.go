// Package web embeds the browser client served at /mist/mist.js.
package web

import _ "embed"

//go:embed mist.js
var Script []byte
