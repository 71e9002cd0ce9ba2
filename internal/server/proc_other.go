//go:build !linux

package server

func residentBytes() (uint64, bool) { return 0, false }
