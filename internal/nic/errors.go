package nic

import "errors"

// ErrTAPClosed indicates a zero-byte TAP read, i.e. EOF (spec §4.5: "on EOF
// set own alert and exit").
var ErrTAPClosed = errors.New("nic: tap device closed")
