package middleware

import "net/http"

// Middleware has the shape chi's router accepts in Use and With.
type Middleware func(http.Handler) http.Handler
