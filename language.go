package optz

import (
	"fmt"
	"strings"
)

// Language is the coarse source language tag threaded through every pass.
type Language int

// Supported languages.
const (
	C Language = iota
	CPP
)

// String returns the display tag.
func (l Language) String() string {
	switch l {
	case CPP:
		return "CPP"
	default:
		return "C"
	}
}

// MarshalText encodes the language as its tag.
func (l Language) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a language tag.
func (l *Language) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "C":
		*l = C
	case "CPP", "C++":
		*l = CPP
	default:
		return fmt.Errorf("unknown language %q", text)
	}
	return nil
}

// cppSignatures are identifiers of the C++ standard stream idiom.
var cppSignatures = []string{"iostream", "cout", "cin"}

// Classify returns CPP when the text uses the C++ standard I/O idiom (the
// stream header, the std namespace directive, or the stream objects) and C
// otherwise. Empty text is C.
func Classify(code string) Language {
	if strings.Contains(code, "using namespace std") {
		return CPP
	}
	for _, sig := range cppSignatures {
		if containsIdent(code, sig) {
			return CPP
		}
	}
	return C
}
