// Package token mints and parses device-bound bearer credentials.
//
// A credential is an HS256 JWS over {iss: server name, sub: user id,
// did: device id}. The signing key is HMAC-SHA256(server secret, server
// name), so credentials cannot be forged without the secret and each
// (user, device) pair maps to exactly one credential. Claims carry no
// timestamps: minting is deterministic and lifetime is governed by the
// device record, not the token.
package token
