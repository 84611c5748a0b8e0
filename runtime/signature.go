package runtime

import (
	"fmt"
	"strings"
)

// SignatureArity returns the number of arguments a method signature takes,
// not counting the receiver. Signatures use Wren's form: "name" for getters,
// "name(_,_)" for methods, "name=(_)" for setters and "[_]" or "[_]=(_)" for
// subscripts.
func SignatureArity(signature string) (int, error) {
	if signature == "" {
		return 0, fmt.Errorf("empty signature: %w", ErrInvalidSignature)
	}
	start := strings.IndexAny(signature, "([")
	if start < 0 {
		if strings.ContainsAny(signature, ")]") {
			return 0, fmt.Errorf("signature %q: %w", signature, ErrInvalidSignature)
		}
		return 0, nil
	}
	if start == 0 && signature[0] == '(' {
		return 0, fmt.Errorf("signature %q has no name: %w", signature, ErrInvalidSignature)
	}

	arity := 0
	depth := 0
	expectArg := false
	// afterComma is set between a comma and the parameter that must follow.
	afterComma := false
	for _, r := range signature[start:] {
		switch r {
		case '(', '[':
			if depth != 0 {
				return 0, fmt.Errorf("signature %q: %w", signature, ErrInvalidSignature)
			}
			depth++
			expectArg = true
		case ')', ']':
			if depth != 1 || afterComma {
				return 0, fmt.Errorf("signature %q: %w", signature, ErrInvalidSignature)
			}
			depth--
			expectArg = false
		case '_':
			if depth != 1 || !expectArg {
				return 0, fmt.Errorf("signature %q: %w", signature, ErrInvalidSignature)
			}
			arity++
			expectArg = false
			afterComma = false
		case ',':
			if depth != 1 || expectArg {
				return 0, fmt.Errorf("signature %q: %w", signature, ErrInvalidSignature)
			}
			expectArg = true
			afterComma = true
		case '=':
			if depth != 0 {
				return 0, fmt.Errorf("signature %q: %w", signature, ErrInvalidSignature)
			}
		default:
			return 0, fmt.Errorf("signature %q: unexpected %q: %w", signature, r, ErrInvalidSignature)
		}
	}
	if depth != 0 {
		return 0, fmt.Errorf("signature %q is not closed: %w", signature, ErrInvalidSignature)
	}
	return arity, nil
}
