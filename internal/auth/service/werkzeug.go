package service

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// Digests written by the Flask version of the app use werkzeug's
// "method$salt$hexdigest" layout, e.g. "pbkdf2:sha256:600000$salt$hex" or
// "scrypt:32768:8:1$salt$hex". They are accepted at login and replaced with
// bcrypt right after.
const (
	werkzeugPBKDF2Prefix = "pbkdf2:"
	werkzeugScryptPrefix = "scrypt:"

	// werkzeugPBKDF2Iterations applies when the method carries no iteration count
	werkzeugPBKDF2Iterations = 600000
	// werkzeugScryptKeyLen is the key length hashlib.scrypt produces by default
	werkzeugScryptKeyLen = 64
)

var werkzeugHashes = map[string]func() hash.Hash{
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha512": sha512.New,
}

// isWerkzeugDigest reports whether the digest uses one of the supported werkzeug methods
func isWerkzeugDigest(digest string) bool {
	return strings.HasPrefix(digest, werkzeugPBKDF2Prefix) || strings.HasPrefix(digest, werkzeugScryptPrefix)
}

// verifyWerkzeug checks a password against a werkzeug digest. Malformed digests never match.
func verifyWerkzeug(password, digest string) bool {
	parts := strings.Split(digest, "$")
	if len(parts) != 3 || parts[1] == "" {
		return false
	}
	method, salt := parts[0], parts[1]

	expected, err := hex.DecodeString(parts[2])
	if err != nil || len(expected) == 0 {
		return false
	}

	var actual []byte
	switch {
	case strings.HasPrefix(method, werkzeugPBKDF2Prefix):
		actual = werkzeugPBKDF2(password, salt, strings.TrimPrefix(method, werkzeugPBKDF2Prefix))
	case strings.HasPrefix(method, werkzeugScryptPrefix):
		actual = werkzeugScrypt(password, salt, strings.TrimPrefix(method, werkzeugScryptPrefix))
	}
	if actual == nil {
		return false
	}

	return subtle.ConstantTimeCompare(actual, expected) == 1
}

// werkzeugPBKDF2 derives the key for "<hash>[:<iterations>]"
func werkzeugPBKDF2(password, salt, args string) []byte {
	fields := strings.Split(args, ":")
	if len(fields) > 2 {
		return nil
	}

	newHash, ok := werkzeugHashes[fields[0]]
	if !ok {
		return nil
	}

	iterations := werkzeugPBKDF2Iterations
	if len(fields) == 2 {
		n, err := strconv.Atoi(fields[1])
		if err != nil || n <= 0 {
			return nil
		}
		iterations = n
	}

	return pbkdf2.Key([]byte(password), []byte(salt), iterations, newHash().Size(), newHash)
}

// werkzeugScrypt derives the key for "<n>:<r>:<p>"
func werkzeugScrypt(password, salt, args string) []byte {
	fields := strings.Split(args, ":")
	if len(fields) != 3 {
		return nil
	}

	params := make([]int, 3)
	for i, field := range fields {
		n, err := strconv.Atoi(field)
		if err != nil || n <= 0 {
			return nil
		}
		params[i] = n
	}

	key, err := scrypt.Key([]byte(password), []byte(salt), params[0], params[1], params[2], werkzeugScryptKeyLen)
	if err != nil {
		return nil
	}
	return key
}
