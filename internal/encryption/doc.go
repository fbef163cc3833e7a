// Package encryption implements password-based envelope encryption of files.
//
// Every artifact starts with a fixed 104-byte header:
//
//	offset  size  field
//	     0    16  scrypt salt
//	    16    12  key-wrap nonce
//	    28    16  key-wrap tag
//	    44    32  wrapped data key
//	    76    12  payload nonce
//	    88    16  payload tag
//	   104     -  ChaCha20-Poly1305 payload, same length as the plaintext
//
// A random data key encrypts the payload; it is itself sealed with ChaCha20-Poly1305
// under a key derived from the password. Payloads are processed in 1 MiB chunks and the
// pipelines are exposed as lazy sequences of progress events.
package encryption
