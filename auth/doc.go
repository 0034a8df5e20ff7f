// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides credential generation and verification utilities.

# Admin Keys

The login subsystem hands each admin a key derived from their ID and role:

	key := auth.GenerateAdminKey(auth.AdminSubject(adminID, role), salt)
	err := auth.ValidateAdminKey(auth.AdminSubject(adminID, role), key, salt)

Keys are HMAC-SHA256, URL-safe base64 without padding. Because the role is
part of the subject, an offline-entry admin's key does not validate as a
results admin.

# One-Time Codes

	code, err := auth.GenerateOneTimeCode() // "042917"
	ok := auth.ValidCodeFormat(code)

Codes are six digits drawn uniformly from crypto/rand. They are stored only as
HashSecret(salt, challengeID, purpose, code).

# Capability Tokens

A capability token is "<challengeID>.<secret>" where the secret comes from
GenerateSecretToken (192 bits). Only HashSecret(sharedSecret, token) is
persisted; SplitCapabilityToken recovers the challenge ID for lookup.

# Comparisons

EqualHash and EqualSecret compare in constant time.
*/
package auth
