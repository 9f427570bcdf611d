//go:build kernelcache_debug

package kernelcache

const debugging = true

func assert(cond bool, message string) {
	if !cond {
		panic(message)
	}
}
