package driver

// NormalizeProperties converts property values to the JSON-friendly forms
// consumers see: unsigned integers become int64 where they fit so that
// stored, emitted and scripted values compare equal.
func NormalizeProperties(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = NormalizeValue(v)
	}
	return out
}

// NormalizeValue is NormalizeProperties for one value. Whole float64s, as
// decoded from stored JSON, become int64 too.
func NormalizeValue(v interface{}) interface{} {
	switch n := v.(type) {
	case uint64:
		if n <= 1<<53 {
			return int64(n)
		}
		return n
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		if n == float64(int64(n)) {
			return int64(n)
		}
		return n
	case map[string]string:
		cp := make(map[string]interface{}, len(n))
		for k, s := range n {
			cp[k] = s
		}
		return cp
	case map[string]interface{}:
		return NormalizeProperties(n)
	}
	return v
}
