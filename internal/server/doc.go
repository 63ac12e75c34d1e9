// Package server hosts the Fiber HTTP service: the middleware chain (request
// IDs, cross-origin headers, panic recovery), the /proxy route that hands off
// to the proxy handler, and the catch-all static route that serves ServeRoot
// with directory listings. It also owns the shared upstream http.Client and
// the list of upstream headers that must not be forwarded. Keep exports narrow
// and accept explicit dependencies so tests can inject fake proxy handlers.
package server
