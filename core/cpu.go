package core

import "github.com/klauspost/cpuid/v2"

// HasAVX2 reports whether the running CPU supports AVX2. Every distance
// function in this package is a portable scalar implementation, so this
// is consulted only to annotate build logs (see nndescent.Builder's
// startup log line), not to fork a code path.
func HasAVX2() bool {
	return cpuid.CPU.Supports(cpuid.AVX2)
}

// CPUBrandName returns a human-readable CPU identification string, logged
// once at builder startup alongside the thread count.
func CPUBrandName() string {
	return cpuid.CPU.BrandName
}
