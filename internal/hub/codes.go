package hub

import (
	"crypto/rand"
	"math/big"
)

const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CodeLength is the number of characters in a room code.
const CodeLength = 6

type CodeGenerator interface {
	NewCode() (string, error)
}

// CodeFunc adapts a plain function to CodeGenerator.
type CodeFunc func() (string, error)

func (f CodeFunc) NewCode() (string, error) { return f() }

// RandomCodes draws room codes from crypto/rand.
type RandomCodes struct{}

func (RandomCodes) NewCode() (string, error) {
	return GenerateCode()
}

func GenerateCode() (string, error) {
	code := make([]byte, CodeLength)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = codeCharset[num.Int64()]
	}
	return string(code), nil
}
