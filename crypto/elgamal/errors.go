package elgamal

import "errors"

// ErrInvalidBallotDecode is returned when a combined ballot does not decode to
// any option within the election bound. The ballot is excluded from the tally.
var ErrInvalidBallotDecode = errors.New("ballot does not decode to a valid option")

// ErrInvalidProof is returned when a partial decryption proof does not verify.
var ErrInvalidProof = errors.New("invalid partial decryption proof")
