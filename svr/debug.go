//go:build kernelcache_debug

package svr

const debugging = true

func assert(cond bool, message string) {
	if !cond {
		panic(message)
	}
}
