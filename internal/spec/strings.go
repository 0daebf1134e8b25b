package spec

import "strings"

// FillerByte pads the identifier fields of a volume descriptor.
//
// ECMA-119 (5th ed.) §8.4.3.2
const FillerByte = 0x20

// ACharacter is an 'a-character' (ECMA-119 §8.4.1): upper case letters, digits, '_' and a handful of punctuation.
type ACharacter uint8

// DCharacter is a 'd-character' (ECMA-119 §8.4.1): upper case letters, digits and '_'.
type DCharacter uint8

// Characters converts a fixed width identifier field to a string, dropping the filler and NUL bytes that pad it.
func Characters[T ACharacter | DCharacter](field []T) string {
	var b strings.Builder
	for _, c := range field {
		b.WriteByte(byte(c))
	}

	return strings.TrimRight(b.String(), "\x20\x00")
}

// PutCharacters fills field with s, padded with [FillerByte]. s is truncated if it does not fit.
func PutCharacters[T ACharacter | DCharacter](field []T, s string) {
	for i := range field {
		if i < len(s) {
			field[i] = T(s[i])
		} else {
			field[i] = FillerByte
		}
	}
}
