package phonetic

// Soundex implements the classic 4-character Soundex code, matching the
// behavior of PostgreSQL's fuzzystrmatch soundex(). Non-ASCII letters are
// ignored; an input without any ASCII letter encodes to the empty string.
type Soundex struct{}

// Name returns "soundex".
func (Soundex) Name() string { return "soundex" }

var soundexDigits = [26]byte{
	// a  b    c    d    e    f    g    h    i    j    k    l    m
	'0', '1', '2', '3', '0', '1', '2', '0', '0', '2', '2', '4', '5',
	// n  o    p    q    r    s    t    u    v    w    x    y    z
	'5', '0', '1', '2', '6', '2', '3', '0', '1', '0', '2', '0', '2',
}

func soundexDigit(c byte) (byte, bool) {
	switch {
	case c >= 'a' && c <= 'z':
		return soundexDigits[c-'a'], true
	case c >= 'A' && c <= 'Z':
		return soundexDigits[c-'A'], true
	default:
		return 0, false
	}
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

// Encode returns the Soundex code of s.
func (Soundex) Encode(s string) string {
	i := 0
	for i < len(s) {
		if _, ok := soundexDigit(s[i]); ok {
			break
		}
		i++
	}
	if i == len(s) {
		return ""
	}

	code := [4]byte{upper(s[i]), '0', '0', '0'}
	prev, _ := soundexDigit(s[i])
	n := 1
	for i++; i < len(s) && n < 4; i++ {
		d, ok := soundexDigit(s[i])
		if !ok {
			// Non-letters are ignored outright.
			continue
		}
		// fuzzystrmatch compares against the immediately preceding letter's
		// code, so vowels, h and w all break a run of equal codes.
		if d != '0' && d != prev {
			code[n] = d
			n++
		}
		prev = d
	}
	return string(code[:])
}
