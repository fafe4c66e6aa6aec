package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"golang.org/x/oauth2"
)

// CodeExchanger trades an authorization code for a token. [services.OAuthProvider] persists the token as well.
type CodeExchanger interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// OAuthResult is the outcome of one authorization callback.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler serves the redirect target of the authorization code flow.
//
// Only the first callback is processed; its result is delivered once on [OAuthHandler.Result].
type OAuthHandler struct {
	exchanger CodeExchanger
	state     string
	path      string
	handled   atomic.Bool
	once      sync.Once
	results   chan OAuthResult
}

// NewOAuthHandler creates a callback handler. state must be the random value sent in the authorization URL.
func NewOAuthHandler(exchanger CodeExchanger, state string) *OAuthHandler {
	return &OAuthHandler{
		exchanger: exchanger,
		state:     state,
		path:      "/callback",
		results:   make(chan OAuthResult, 1),
	}
}

// Routes serves the callback for GET only; the provider redirects the browser there.
func (h *OAuthHandler) Routes() []string {
	return []string{http.MethodGet + " " + h.path}
}

func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.handled.CompareAndSwap(false, true) {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}

	token, status, err := h.exchange(r)
	if err != nil {
		h.Send(OAuthResult{err: err})
		http.Error(w, http.StatusText(status)+": "+err.Error(), status)
		return
	}

	h.Send(OAuthResult{Token: token})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, successPage)
}

// exchange validates the callback query and trades the code. The exchange outlives the request
// so a browser that closes early does not abort it.
func (h *OAuthHandler) exchange(r *http.Request) (*oauth2.Token, int, error) {
	query := r.URL.Query()
	if query.Get("state") != h.state {
		return nil, http.StatusBadRequest, errors.New("invalid state parameter")
	}

	code := query.Get("code")
	if code == "" {
		reason := query.Get("error")
		if desc := query.Get("error_description"); desc != "" {
			reason += " - " + desc
		}
		if reason == "" {
			reason = "no authorization code in callback"
		}
		return nil, http.StatusBadRequest, fmt.Errorf("authorization failed: %s", reason)
	}

	token, err := h.exchanger.Exchange(context.WithoutCancel(r.Context()), code)
	if err != nil {
		return nil, http.StatusBadGateway, fmt.Errorf("token exchange failed: %w", err)
	}
	return token, http.StatusOK, nil
}

// Send delivers result unless one was already delivered.
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.results <- result
		close(h.results)
	})
}

// Result receives exactly one result, then is closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.results
}

const successPage = `
<!DOCTYPE html>
<html>
<head>
    <title>Authorization Successful</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #ff0033; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ ytpull is authorized</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`
