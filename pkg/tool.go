package pkg

// Contains check source have target
func Contains(slice []string, val string) bool {
	for _, v := range slice {
		if v == val {
			return true
		}
	}
	return false
}

// AppendUnique append values not yet present and not empty, order kept
func AppendUnique(slice []string, vals ...string) []string {
	for _, v := range vals {
		if v == "" || Contains(slice, v) {
			continue
		}
		slice = append(slice, v)
	}
	return slice
}
