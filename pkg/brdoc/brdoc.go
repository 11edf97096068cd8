// Package brdoc validates and formats Brazilian identity and contact fields
// (CNPJ, CPF, phone, CEP). Functions are pure and allocation-light so the
// package can back both the authoritative server-side checks and any thin
// pre-validation layer without drift between the two.
package brdoc

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._+-]+@[A-Za-z0-9-]+(\.[A-Za-z0-9-]+)*\.[A-Za-z]{2,4}$`)

// NormalizeDigits strips every non-digit rune from s. It never fails; input
// with no digits yields the empty string.
func NormalizeDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateCNPJ reports whether s contains a valid 14-digit CNPJ. Separators
// are ignored. Sequences of a single repeated digit pass the modulo
// arithmetic by construction but are never issued, so they are rejected.
func ValidateCNPJ(s string) bool {
	cnpj := NormalizeDigits(s)
	if len(cnpj) != 14 {
		return false
	}
	if allSameDigit(cnpj) {
		return false
	}

	weights1 := []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	if checkDigit(cnpj[:12], weights1) != int(cnpj[12]-'0') {
		return false
	}
	weights2 := []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	return checkDigit(cnpj[:13], weights2) == int(cnpj[13]-'0')
}

// ValidateCPF reports whether s contains a valid 11-digit CPF. Separators are
// ignored and single-repeated-digit sequences are rejected.
func ValidateCPF(s string) bool {
	cpf := NormalizeDigits(s)
	if len(cpf) != 11 {
		return false
	}
	if allSameDigit(cpf) {
		return false
	}

	weights1 := []int{10, 9, 8, 7, 6, 5, 4, 3, 2}
	if checkDigit(cpf[:9], weights1) != int(cpf[9]-'0') {
		return false
	}
	weights2 := []int{11, 10, 9, 8, 7, 6, 5, 4, 3, 2}
	return checkDigit(cpf[:10], weights2) == int(cpf[10]-'0')
}

// checkDigit computes a mod-11 check digit over digits with the given
// weights. Remainders below 2 collapse to 0 per the Receita Federal rule.
func checkDigit(digits string, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += int(digits[i]-'0') * w
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

func allSameDigit(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}

// FormatCNPJ renders digits of s as NN.NNN.NNN/NNNN-NN, applying the mask
// progressively for shorter input. Used for display masks; it carries no
// validation semantics. Input longer than 14 digits is returned normalized.
func FormatCNPJ(s string) string {
	d := NormalizeDigits(s)
	switch {
	case len(d) > 14:
		return d
	case len(d) > 12:
		return d[:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:12] + "-" + d[12:]
	case len(d) > 8:
		return d[:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:]
	case len(d) > 5:
		return d[:2] + "." + d[2:5] + "." + d[5:]
	case len(d) > 2:
		return d[:2] + "." + d[2:]
	default:
		return d
	}
}

// FormatCPF renders digits of s as NNN.NNN.NNN-NN with the same progressive
// behavior as FormatCNPJ.
func FormatCPF(s string) string {
	d := NormalizeDigits(s)
	switch {
	case len(d) > 11:
		return d
	case len(d) > 9:
		return d[:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:]
	case len(d) > 6:
		return d[:3] + "." + d[3:6] + "." + d[6:]
	case len(d) > 3:
		return d[:3] + "." + d[3:]
	default:
		return d
	}
}

// FormatPhone renders a Brazilian phone number for display. Eleven digits are
// treated as mobile ((NN) NNNNN-NNNN), ten as landline ((NN) NNNN-NNNN), and
// shorter prefixes are masked progressively for live typing.
func FormatPhone(s string) string {
	d := NormalizeDigits(s)
	switch {
	case len(d) == 0 || len(d) > 11:
		return d
	case len(d) <= 2:
		return "(" + d
	case len(d) <= 6:
		return "(" + d[:2] + ") " + d[2:]
	case len(d) <= 10:
		return "(" + d[:2] + ") " + d[2:6] + "-" + d[6:]
	default:
		return "(" + d[:2] + ") " + d[2:7] + "-" + d[7:]
	}
}

// FormatCEP renders an 8-digit postal code as NNNNN-NNN. Shorter input is
// returned as bare digits.
func FormatCEP(s string) string {
	d := NormalizeDigits(s)
	if len(d) > 5 && len(d) <= 8 {
		return d[:5] + "-" + d[5:]
	}
	return d
}

// ValidateEmail applies a conservative syntactic check: a restricted local
// part, a dotted domain, and a 2-4 letter TLD. It does not attempt
// deliverability verification.
func ValidateEmail(s string) bool {
	return emailPattern.MatchString(s)
}
