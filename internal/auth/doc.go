// Package auth provides authentication and authorisation for the inventory service.
//
// It implements a 2-tier role model (user → admin) with:
//   - Argon2id password hashing (OWASP 2025 recommendation)
//   - JWT access/refresh token rotation with family-based theft detection
//   - Static role-permission mapping (compile-time, no database lookup)
//
// Regular users can read the inventory and append ownership and location
// transactions. Only admins can modify devices, correct transaction history,
// manage accounts, or run import/export and purge operations.
package auth
