//go:build !kernelcache_debug

package kernelcache

const debugging = false

func assert(bool, string) {}
