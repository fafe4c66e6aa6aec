// Package server provides the HTTP routing, middleware, and OAuth callback handling used by `ytpull auth login`.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback flow for the YouTube Data API.
//
// The handler validates the state parameter (CSRF protection), exchanges the authorization code through a
// [CodeExchanger], and sends the result through a channel. It only processes one callback to prevent replay attacks.
//
// A temporary server starts on the configured host and port (localhost:8080 by default), handles the callback,
// and shuts down after receiving the token.
package server
