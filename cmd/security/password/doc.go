// Package password hashes and verifies account passwords with Argon2id.
//
// Encoded hashes use the PHC string format
// $argon2id$v=19$m=<KiB>,t=<iterations>,p=<parallelism>$<salt>$<key>
// and are treated as untrusted input on verification.
package password
