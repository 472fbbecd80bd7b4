package util

const (
	// DefaultRegion replaces an empty region before it is combined with a key.
	DefaultRegion = "region"
	KeySeparator  = "_"
)

// Region normalizes an empty region to DefaultRegion.
func Region(region string) string {
	if region == "" {
		return DefaultRegion
	}
	return region
}

// Combined returns the storage key "<region>_<key>".
func Combined(key, region string) string {
	return Region(region) + KeySeparator + key
}

// RegionPrefix is the prefix shared by every combined key of region.
func RegionPrefix(region string) string {
	return Region(region) + KeySeparator
}
