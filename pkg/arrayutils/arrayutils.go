package arrayutils

// Contains returns true if v is an element of arr.
func Contains[T comparable](arr []T, v T) bool {
	return IndexOf(arr, v) != -1
}

// IndexOf returns the index of the first occurrence of v
// in arr or -1 if arr does not contain v.
func IndexOf[T comparable](arr []T, v T) int {
	for i, e := range arr {
		if e == v {
			return i
		}
	}
	return -1
}

// Filter returns a new slice containing all elements of arr
// for which keep returns true.
func Filter[T any](arr []T, keep func(T) bool) []T {
	res := make([]T, 0, len(arr))
	for _, e := range arr {
		if keep(e) {
			res = append(res, e)
		}
	}
	return res
}
