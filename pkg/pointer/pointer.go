package pointer

func to[T any](value T) *T {
	return &value
}

func orDefault[T any](value *T, defaultValue T) *T {
	if value != nil {
		return value
	}
	return &defaultValue
}

func ifValid[T any](valid bool, value T) *T {
	if valid {
		return &value
	}
	return nil
}

func copyOf[T any](value *T) *T {
	if value == nil {
		return nil
	}
	return to(*value)
}

// String returns a pointer to the provided string value
func String(value string) *string {
	return to(value)
}

// StringOrDefault returns the pointer if not nil, otherwise the default value
func StringOrDefault(value *string, defaultValue string) *string {
	return orDefault(value, defaultValue)
}

// StringIfValid returns a pointer to the value if it's valid, otherwise nil
func StringIfValid(valid bool, value string) *string {
	return ifValid(valid, value)
}

// StringCopy returns a pointer that's a copy of the provided value
func StringCopy(value *string) *string {
	return copyOf(value)
}

// Uint64 returns a pointer to the provided uint64 value
func Uint64(value uint64) *uint64 {
	return to(value)
}

// Uint64OrDefault returns the pointer if not nil, otherwise the default value
func Uint64OrDefault(value *uint64, defaultValue uint64) *uint64 {
	return orDefault(value, defaultValue)
}

// Uint64IfValid returns a pointer to the value if it's valid, otherwise nil
func Uint64IfValid(valid bool, value uint64) *uint64 {
	return ifValid(valid, value)
}

// Uint64Copy returns a pointer that's a copy of the provided value
func Uint64Copy(value *uint64) *uint64 {
	return copyOf(value)
}
