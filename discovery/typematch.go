// SPDX-License-Identifier: MIT

package discovery

import "strings"

// normalizeTypeName renders a type name from any participating
// vendor's convention into a canonical form: strip a leading "IDL:"
// prefix, collapse "::msg::" module separators, and translate
// "/"-style namespace separators into "::".
func normalizeTypeName(name string) string {
	name = strings.TrimPrefix(name, "IDL:")
	name = strings.ReplaceAll(name, "::msg::", "::")
	name = strings.ReplaceAll(name, "/", "::")
	return name
}

// typeCompatible reports whether two type names refer to the same
// type once normalized. A full XTypes assignability check (FINAL
// exact-match, APPENDABLE prefix, MUTABLE member-id map) additionally
// applies when both sides carry a TypeObject hash; this core does not
// yet carry TypeObject payloads end-to-end, so name equality is the
// compatibility test actually enforced.
func typeCompatible(a, b string) bool {
	return normalizeTypeName(a) == normalizeTypeName(b)
}
