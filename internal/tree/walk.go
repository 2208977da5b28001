package tree

// Parent is any tree node that exposes its children.
type Parent[T any] interface {
	Children() []T
}

// ForEachDfs calls fn on root and then on each descendant, pre-order.
func ForEachDfs[T Parent[T]](root T, fn func(T)) {
	fn(root)
	for _, c := range root.Children() {
		ForEachDfs(c, fn)
	}
}

// FindDfs returns the first node in pre-order for which match is true.
func FindDfs[T Parent[T]](root T, match func(T) bool) (T, bool) {
	if match(root) {
		return root, true
	}
	for _, c := range root.Children() {
		if found, ok := FindDfs(c, match); ok {
			return found, true
		}
	}
	var zero T
	return zero, false
}

// FilterDfs returns every node in pre-order for which match is true.
func FilterDfs[T Parent[T]](root T, match func(T) bool) []T {
	var out []T
	ForEachDfs(root, func(n T) {
		if match(n) {
			out = append(out, n)
		}
	})
	return out
}
