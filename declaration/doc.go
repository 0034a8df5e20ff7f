// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package declaration implements the dual-authority release of results.

# Challenge

Authority walks one challenge through its states:

	PASSWORD_OK → CODE1_SENT → CODE1_VERIFIED → CODE2_SENT → CODE2_VERIFIED → TOKEN_ISSUED

StartChallenge checks the shared secret and sends principal 1 a one-time
code. Verifying that code sends principal 2 theirs. Once both are verified
IssueToken returns a capability token. Any step attempted after the
challenge lifetime moves it to EXPIRED, which is terminal.

Codes and tokens are stored only as HMACs. Each code allows a bounded
number of wrong guesses and is cleared once used.

# Gate

Gate holds the single declared flag. Declare and Revoke take a capability
token; each token may make one effective declare and one effective revoke
before it expires. A request for the state that already holds succeeds
with AlreadySatisfied and does not consume the token.

# Sweeper

Sweeper deletes expired rows in the background. Nothing depends on it for
correctness.
*/
package declaration
