// Package auth guards the write side of the HTTP API.
//
// A single operator account is configured with an Argon2id PHC hash. A
// successful login yields a short-lived HS256 JWT that the API requires on
// state-changing requests. Reads stay open.
package auth
