package multicache

// coalesce picks def for a zero v. Used for optional Options fields.
func coalesce[T comparable](v, def T) T {
	if v == *new(T) {
		return def
	}
	return v
}
