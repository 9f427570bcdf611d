//go:build !kernelcache_debug

package svr

const debugging = false

func assert(bool, string) {}
