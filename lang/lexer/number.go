package lexer

import (
	"strconv"
	"strings"

	"github.com/mna/lethec/lang/token"
)

// scanNumber implements the number parser of spec §4.3: base detection
// (0x/0b/0-octal/decimal), digit separators, float/double suffixes and
// overflow detection. It is reached once the lexer has already confirmed
// the current rune is a digit.
func (l *Lexer) scanNumber(loc token.Location) (token.Token, token.Value, token.Location) {
	var digits strings.Builder

	base := 10
	if l.cur == '0' {
		switch {
		case l.peekByte() == 'x' || l.peekByte() == 'X':
			l.advance()
			l.advance()
			base = 16
		case l.peekByte() == 'b' || l.peekByte() == 'B':
			l.advance()
			l.advance()
			base = 2
		case isDigit(rune(l.peekByte())):
			base = 8
		}
	}

	readDigits(l, &digits, base)

	// Sub-base literals are integer-only; a trailing '.' after one is a
	// separate DOT token, not a float continuation.
	if base != 10 {
		return l.finishInt(loc, digits.String(), base)
	}

	isFloat := false
	if l.cur == '.' && isDigit(rune(l.peekByte())) {
		isFloat = true
		digits.WriteByte('.')
		l.advance()
		readDigits(l, &digits, 10)
	} else if l.cur == '.' && !isLetter(l.cur) {
		// "1." with nothing trailing is still a valid float literal.
		isFloat = true
		digits.WriteByte('.')
		l.advance()
	}
	if l.cur == 'e' || l.cur == 'E' {
		isFloat = true
		digits.WriteByte('e')
		l.advance()
		if l.cur == '+' || l.cur == '-' {
			digits.WriteByte(byte(l.cur))
			l.advance()
		}
		readDigits(l, &digits, 10)
	}

	if isFloat {
		return l.finishFloat(loc, digits.String())
	}
	return l.finishInt(loc, digits.String(), base)
}

// scanFractional handles a literal that starts with '.' followed by a
// digit, e.g. ".5".
func (l *Lexer) scanFractional(loc token.Location, intPart string) (token.Token, token.Value, token.Location) {
	var digits strings.Builder
	digits.WriteString(intPart)
	digits.WriteByte('.')
	readDigits(l, &digits, 10)
	if l.cur == 'e' || l.cur == 'E' {
		digits.WriteByte('e')
		l.advance()
		if l.cur == '+' || l.cur == '-' {
			digits.WriteByte(byte(l.cur))
			l.advance()
		}
		readDigits(l, &digits, 10)
	}
	return l.finishFloat(loc, digits.String())
}

func readDigits(l *Lexer, into *strings.Builder, base int) {
	for {
		if l.cur == '\'' {
			// digit separator: only between two digits of this base, so not at
			// either end and not next to '.' or the exponent.
			s := into.String()
			if s == "" || !isDigitInBase(rune(s[len(s)-1]), base) || !isDigitInBase(rune(l.peekByte()), base) {
				l.errorf(l.loc(), "misplaced digit separator")
			}
			l.advance()
			continue
		}
		if !isDigitInBase(l.cur, base) {
			return
		}
		into.WriteByte(byte(l.cur))
		l.advance()
	}
}

func isDigitInBase(r rune, base int) bool {
	switch base {
	case 2:
		return r == '0' || r == '1'
	case 8:
		return r >= '0' && r <= '7'
	case 16:
		return isHexDigit(r)
	default:
		return isDigit(r)
	}
}

func (l *Lexer) readIntSuffix() (flags token.NumberFlag) {
	for {
		switch l.cur {
		case 'u', 'U':
			flags |= token.NumUnsigned
			l.advance()
		case 'l', 'L':
			flags |= token.NumLong
			l.advance()
		default:
			return flags
		}
	}
}

func (l *Lexer) readFloatSuffix() (flags token.NumberFlag, explicit bool) {
	switch l.cur {
	case 'f', 'F':
		l.advance()
		return token.NumFloat32, true
	case 'd', 'D':
		l.advance()
		return token.NumFloat64, true
	default:
		return 0, false
	}
}

func (l *Lexer) finishInt(loc token.Location, digits string, base int) (token.Token, token.Value, token.Location) {
	flags := l.readIntSuffix()
	if digits == "" {
		l.errorf(loc, "malformed integer literal")
		return token.INT, token.Value{Flags: flags}, loc
	}
	v, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		flags |= token.NumOverflow
		l.errorf(loc, "integer overflow")
		// The wrapped value (modulo 2^64) is still returned, matching spec
		// §4.3: report the overflow and keep going rather than abort the literal.
		v = wrapUint(digits, base)
	}
	return token.INT, token.Value{Text: digits, Int: int64(v), Flags: flags}, loc
}

// wrapUint computes digits' value in base modulo 2^64, used only to
// recover a value after reporting overflow.
func wrapUint(digits string, base int) uint64 {
	var v uint64
	for _, c := range digits {
		v = v*uint64(base) + uint64(hexVal(c))
	}
	return v
}

func (l *Lexer) finishFloat(loc token.Location, digits string) (token.Token, token.Value, token.Location) {
	explicitFlags, explicit := l.readFloatSuffix()
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		l.errorf(loc, "malformed float literal")
	}
	flags := explicitFlags
	if !explicit {
		if l.mode == Double {
			flags = token.NumFloat64
		} else {
			flags = token.NumFloat32
		}
	}
	// Denormals are flushed to zero, per spec §4.3.
	if v != 0 && isDenormal(v, flags) {
		v = 0
	}
	return token.FLOAT, token.Value{Text: digits, Float: v, Flags: flags}, loc
}

func isDenormal(v float64, flags token.NumberFlag) bool {
	if flags&token.NumFloat32 != 0 {
		f := float32(v)
		return f != 0 && f > -minNormalFloat32 && f < minNormalFloat32
	}
	return v != 0 && v > -minNormalFloat64 && v < minNormalFloat64
}

const (
	minNormalFloat32 = 1.1754943508222875e-38
	minNormalFloat64 = 2.2250738585072014e-308
)
