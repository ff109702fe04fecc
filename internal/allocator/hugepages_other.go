//go:build darwin || freebsd

package allocator

// adviseHugePages is a no-op outside Linux: madvise(MADV_HUGEPAGE) is a
// Linux-specific transparent-huge-pages hint with no portable equivalent.
func adviseHugePages(mem []byte) {}
