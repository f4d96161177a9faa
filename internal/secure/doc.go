// Package secure keeps resolved secret values encrypted while they sit in
// process memory.
//
// It wraps memguard enclaves. A sealed Value is encrypted with
// XSalsa20Poly1305 under a per-process key and only decrypted for the
// duration of a Bytes call:
//
//	v := secure.Seal(body)
//	defer v.Destroy()
//
//	plain, err := v.Bytes()
//	if err != nil {
//	    return err
//	}
//
// Seal copies its input before sealing, so the caller keeps ownership of the
// slice it passed in. Bytes returns a fresh copy on every call.
//
// Memory locking depends on RLIMIT_MEMLOCK on Linux. When locking is not
// possible memguard falls back to ordinary memory; the enclave contents stay
// encrypted either way.
//
// Call memguard.Purge (or secure.Purge) before the process exits to wipe the
// enclave key.
package secure
