// Package credentials generates the human-memorable login codes children
// use instead of account passwords.
package credentials

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
)

// Code words for child logins. 25 words x 99 numbers gives a 2,475-value
// space per family; brute-force protection lives in the login rate
// limiter, not the code entropy.
var codeWords = []string{
	"tiger", "panda", "eagle", "otter", "koala",
	"zebra", "moose", "gecko", "llama", "bison",
	"robin", "shark", "whale", "camel", "lemur",
	"hippo", "rhino", "dingo", "heron", "crane",
	"finch", "skunk", "sloth", "stork", "raven",
}

var codePattern = regexp.MustCompile(`^[a-z]+-[1-9][0-9]?$`)

// GenerateLoginCode returns a random "word-number" code, e.g. "tiger-4".
func GenerateLoginCode() (string, error) {
	word, err := randomElement(codeWords)
	if err != nil {
		return "", err
	}

	n, err := rand.Int(rand.Reader, big.NewInt(99))
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s-%d", word, n.Int64()+1), nil
}

// ValidLoginCode reports whether s has the word-number shape. Used to
// reject garbage before touching the database.
func ValidLoginCode(s string) bool {
	return codePattern.MatchString(s)
}

// randomElement picks a random element from a string slice
func randomElement(slice []string) (string, error) {
	num, err := rand.Int(rand.Reader, big.NewInt(int64(len(slice))))
	if err != nil {
		return "", err
	}
	return slice[num.Int64()], nil
}
