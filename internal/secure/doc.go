// Package secure keeps secrets encrypted while they sit in process memory.
//
// It wraps memguard enclaves: sealed data is encrypted with
// XSalsa20Poly1305 under a key held in locked, guard-paged memory, and is
// decrypted only into short-lived locked buffers.
//
//	buf, err := secure.NewSecureBuffer(secret)
//	if err != nil {
//	    return err
//	}
//	defer buf.Destroy()
//
//	plain, err := buf.Copy()
//
// It does NOT protect against attackers with access to the running process,
// or against hardware-level attacks.
package secure
