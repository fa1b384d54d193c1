// Package password hashes and verifies user passwords.
//
// New hashes are argon2id PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher.Verify] also accepts bcrypt hashes ($2a$, $2b$, $2y$) so user
// tables migrated from older homeservers keep working; [Hasher.NeedsRehash]
// flags them for replacement.
//
// This package does not store passwords or enforce password policy.
package password
