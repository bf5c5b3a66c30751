// Package httpapi is the chi router for the portal auth endpoints: login,
// registration, renewal, logout, /auth/me and the admin account actions.
//
// Credentials travel as two HttpOnly cookies. access_token (Path /) holds the
// session credential; refresh_token (Path /auth) holds the encrypted renewal
// credential.
package httpapi
