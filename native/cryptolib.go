package native

import (
	"crypto/sha256"
	"encoding/hex"

	amoghecrypt "github.com/amoghe/go-crypt"
	sergeymakinencrypt "github.com/sergeymakinen/go-crypt"
	"golang.org/x/crypto/argon2"

	"raya/interp"
	"raya/rerr"
	"raya/value"
)

// registerCrypto installs the crypto range (0x4000-0x40FF). Grounded on
// builtins/crypto.go's checksum/crypt/hash builtins, but where the
// teacher hand-rolls simplified SHA-256/SHA-512 "crypt" variants and
// shells out to libc crypt(3) via cgo on Unix
// (builtins/crypto_unix.go), this runtime instead uses the pure-Go
// go-crypt packages already in go.mod for traditional DES crypt(3)
// compatibility without a cgo dependency: github.com/amoghe/go-crypt
// for the reference implementation and github.com/sergeymakinen/go-crypt
// as the portable (non-Unix-specific) equivalent. Password-grade hashing
// uses golang.org/x/crypto/argon2, the same package the teacher already
// imports for its own extensions (builtins/compat_extensions.go).
func (t *Table) registerCrypto() {
	t.Register(rangeCryptoStart+0, "crypto.sha256_hex", cryptoSHA256Hex)
	t.Register(rangeCryptoStart+1, "crypto.crypt_des", cryptoCryptDES)
	t.Register(rangeCryptoStart+2, "crypto.crypt_portable", cryptoCryptPortable)
	t.Register(rangeCryptoStart+3, "crypto.argon2", cryptoArgon2)
}

func cryptoSHA256Hex(ctx *interp.NativeContext, args []value.Value) interp.NativeDirective {
	if len(args) != 1 {
		return argErr("crypto.sha256_hex expects exactly one argument")
	}
	s, ok := goString(ctx, args[0])
	if !ok {
		return argErr("crypto.sha256_hex expects a string argument")
	}
	sum := sha256.Sum256([]byte(s))
	return valueResult(newString(ctx, hex.EncodeToString(sum[:])))
}

func cryptoCryptDES(ctx *interp.NativeContext, args []value.Value) interp.NativeDirective {
	password, salt, ok := twoStrings(ctx, args)
	if !ok {
		return argErr("crypto.crypt_des expects two string arguments (password, salt)")
	}
	hashed, err := amoghecrypt.Crypt(password, salt)
	if err != nil {
		return interp.NativeDirective{Kind: interp.NativeException, Err: rerr.New(rerr.KindRuntimeError, "crypto.crypt_des: %v", err)}
	}
	return valueResult(newString(ctx, hashed))
}

func cryptoCryptPortable(ctx *interp.NativeContext, args []value.Value) interp.NativeDirective {
	password, salt, ok := twoStrings(ctx, args)
	if !ok {
		return argErr("crypto.crypt_portable expects two string arguments (password, salt)")
	}
	hashed, err := sergeymakinencrypt.Crypt(password, salt)
	if err != nil {
		return interp.NativeDirective{Kind: interp.NativeException, Err: rerr.New(rerr.KindRuntimeError, "crypto.crypt_portable: %v", err)}
	}
	return valueResult(newString(ctx, hashed))
}

// cryptoArgon2 hashes password with fixed, conservative argon2id
// parameters (spec.md leaves tuning to the host; natives expose a single
// sane default rather than a parameter explosion).
func cryptoArgon2(ctx *interp.NativeContext, args []value.Value) interp.NativeDirective {
	password, salt, ok := twoStrings(ctx, args)
	if !ok {
		return argErr("crypto.argon2 expects two string arguments (password, salt)")
	}
	key := argon2.IDKey([]byte(password), []byte(salt), 1, 64*1024, 4, 32)
	return valueResult(newString(ctx, hex.EncodeToString(key)))
}

func twoStrings(ctx *interp.NativeContext, args []value.Value) (string, string, bool) {
	if len(args) != 2 {
		return "", "", false
	}
	a, ok1 := goString(ctx, args[0])
	b, ok2 := goString(ctx, args[1])
	return a, b, ok1 && ok2
}
