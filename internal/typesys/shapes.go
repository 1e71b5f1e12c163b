package typesys

// Delegate returns the parameter and return types of a delegate shape:
// Func<..., TResult>, Action<...>, Predicate<T>, Comparison<T>, or any of
// those wrapped in Expression<...>.
func Delegate(t *Type) (params []*Type, ret *Type, ok bool) {
	if t == nil || t.Array > 0 {
		return nil, nil, false
	}
	if t.Name == "Expression" && len(t.Args) == 1 {
		t = t.Args[0]
	}
	switch t.Name {
	case "Func":
		if len(t.Args) == 0 {
			return nil, nil, false
		}
		return t.Args[:len(t.Args)-1], t.Args[len(t.Args)-1], true
	case "Action":
		return t.Args, Named(Void), true
	case "Predicate":
		if len(t.Args) != 1 {
			return nil, nil, false
		}
		return t.Args, Named(Boolean), true
	case "Comparison":
		if len(t.Args) != 1 {
			return nil, nil, false
		}
		return []*Type{t.Args[0], t.Args[0]}, Named(Int32), true
	}
	return nil, nil, false
}

var sequenceFamily = map[string]bool{
	"IEnumerable":         true,
	"IQueryable":          true,
	"IOrderedQueryable":   true,
	"IOrderedEnumerable":  true,
	"IAsyncEnumerable":    true,
	"ICollection":         true,
	"IReadOnlyCollection": true,
	"IList":               true,
	"IReadOnlyList":       true,
	"List":                true,
	"HashSet":             true,
	"ISet":                true,
	"DbSet":               true,
	"IGrouping":           true,
}

// IsSequenceFamily is the name-based check for collection-like types that
// query operators extend. Arrays are always sequences.
func IsSequenceFamily(t *Type) bool {
	if t == nil {
		return false
	}
	return t.Array > 0 || sequenceFamily[t.Name]
}

// IsNumeric reports whether t is a built-in numeric type.
func IsNumeric(t *Type) bool {
	if t == nil || t.Array > 0 {
		return false
	}
	switch t.Name {
	case Int32, Int64, "Int16", "Byte", "SByte", "UInt16", "UInt32", "UInt64", Double, Single, Decimal:
		return true
	}
	return false
}
